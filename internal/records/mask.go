package records

// Mask is shown in place of every hidden password, whatever its length.
const Mask = "••••••••"

func Display(secret string, revealed bool) string {
	if revealed {
		return secret
	}
	return Mask
}
