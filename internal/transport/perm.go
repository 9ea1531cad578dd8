package transport

import (
	"io/fs"
	"strings"
)

// Perm is a set of POSIX permission bits. Individual bits are also Perm
// values, so a set can be built with |.
type Perm uint32

const (
	OwnerRead     Perm = 0o400
	OwnerWrite    Perm = 0o200
	OwnerExecute  Perm = 0o100
	GroupRead     Perm = 0o040
	GroupWrite    Perm = 0o020
	GroupExecute  Perm = 0o010
	OthersRead    Perm = 0o004
	OthersWrite   Perm = 0o002
	OthersExecute Perm = 0o001

	permMask Perm = 0o777
)

// AllPerms lists every permission bit from most to least significant.
var AllPerms = []Perm{
	OwnerRead, OwnerWrite, OwnerExecute,
	GroupRead, GroupWrite, GroupExecute,
	OthersRead, OthersWrite, OthersExecute,
}

// PermFromMode extracts the nine permission bits from a file mode.
func PermFromMode(mode fs.FileMode) Perm {
	return Perm(mode.Perm())
}

// Has reports whether every bit in q is set in p.
func (p Perm) Has(q Perm) bool { return p&q == q }

// With returns p with the bits in q set.
func (p Perm) With(q Perm) Perm { return (p | q) & permMask }

// Without returns p with the bits in q cleared.
func (p Perm) Without(q Perm) Perm { return p &^ q }

// Set returns p with q set or cleared depending on on.
func (p Perm) Set(q Perm, on bool) Perm {
	if on {
		return p.With(q)
	}
	return p.Without(q)
}

// Bits lists the individual bits set in p, most significant first.
func (p Perm) Bits() []Perm {
	var bits []Perm
	for _, b := range AllPerms {
		if p.Has(b) {
			bits = append(bits, b)
		}
	}
	return bits
}

// FileMode converts p to an fs.FileMode suitable for chmod.
func (p Perm) FileMode() fs.FileMode {
	return fs.FileMode(p & permMask)
}

// String renders p like ls does, e.g. "rwxr-xr--".
func (p Perm) String() string {
	const rwx = "rwxrwxrwx"
	var sb strings.Builder
	for i, b := range AllPerms {
		if p.Has(b) {
			sb.WriteByte(rwx[i])
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}
