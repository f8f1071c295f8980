package main

// Nick/channel comparison is case-sensitive throughout this server (§3):
// unlike the teacher, which lower-cases both for RFC 1459 casemapping, we
// deliberately do not canonicalize. See DESIGN.md's Open Question log.

const maxChannelLength = 50

// isValidNick checks a candidate nick for shape, not availability -- see
// the Clients registry for the uniqueness check.
func isValidNick(maxLen int, n string) bool {
	if len(n) == 0 || int64(len(n)) > int64(maxLen) {
		return false
	}

	for i, char := range n {
		switch {
		case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z':
			continue
		case char >= '0' && char <= '9':
			if i == 0 {
				return false
			}
			continue
		case char == '_', char == '-', char == '[', char == ']', char == '\\', char == '^':
			continue
		default:
			return false
		}
	}

	return true
}

// isValidUser checks the <user> parameter of a USER command for shape.
func isValidUser(u string) bool {
	if len(u) == 0 {
		return false
	}
	for _, char := range u {
		if char == '\x00' || char == '\r' || char == '\n' || char == ' ' {
			return false
		}
	}
	return true
}

// isValidChannel checks a channel name for shape. Per §3, only the '#'
// namespace is modeled; anything not starting with '#' is a Target::User,
// not a malformed channel.
func isValidChannel(c string) bool {
	if len(c) == 0 || len(c) > maxChannelLength {
		return false
	}
	if c[0] != '#' {
		return false
	}
	for _, char := range c[1:] {
		if char == '\x00' || char == '\r' || char == '\n' || char == ' ' || char == ',' {
			return false
		}
	}
	return true
}

// isChannelTarget reports whether target names a channel rather than a
// nick (§3 Target: tagged on the '#' prefix).
func isChannelTarget(target string) bool {
	return len(target) > 0 && target[0] == '#'
}
