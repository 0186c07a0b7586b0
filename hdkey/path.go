package hdkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Path is a sequence of child indices starting below the master key.
type Path []uint32

// ParsePath parses the textual form of a derivation path, e.g.
// "m/44'/0'/0'/0/7". Hardened components are marked with ', h or H. The
// lone "m" is the empty path.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if parts[0] != "m" && parts[0] != "M" {
		return nil, fmt.Errorf("%w: %q must start with m", ErrInvalidPath,
			s)
	}

	path := make(Path, 0, len(parts)-1)
	for pos, part := range parts[1:] {
		var offset uint32
		if trimmed, ok := cutHardenedMarker(part); ok {
			part = trimmed
			offset = HardenedKeyStart
		}

		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil || idx >= HardenedKeyStart {
			return nil, fmt.Errorf("%w: %q: bad component %d",
				ErrInvalidPath, s, pos+1)
		}

		path = append(path, uint32(idx)+offset)
	}

	return path, nil
}

func cutHardenedMarker(part string) (string, bool) {
	for _, marker := range []string{"'", "h", "H"} {
		if trimmed, ok := strings.CutSuffix(part, marker); ok {
			return trimmed, true
		}
	}

	return part, false
}

// String returns the path in the form accepted by ParsePath, using ' for
// hardened components.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, idx := range p {
		b.WriteString("/")
		b.WriteString(indexString(idx))
	}

	return b.String()
}

// Child returns a new path that extends p by the index i.
func (p Path) Child(i uint32) Path {
	child := make(Path, len(p), len(p)+1)
	copy(child, p)

	return append(child, i)
}

// DerivePath walks path down from root and returns the final key. Errors
// name the prefix of the path that failed.
func DerivePath(root *ExtendedPrivateKey,
	path Path) (*ExtendedPrivateKey, error) {

	key := root
	for i, idx := range path {
		child, err := key.Child(idx)
		if err != nil {
			return nil, fmt.Errorf("unable to derive %v: %w",
				path[:i+1], err)
		}
		key = child
	}

	return key, nil
}

// DerivePublicPath walks path down from a public key. Every component must
// be a normal index.
func DerivePublicPath(root *ExtendedPublicKey,
	path Path) (*ExtendedPublicKey, error) {

	key := root
	for i, idx := range path {
		child, err := key.Child(idx)
		if err != nil {
			return nil, fmt.Errorf("unable to derive %v: %w",
				path[:i+1], err)
		}
		key = child
	}

	return key, nil
}
