package models

// Kind identifies which catalog subject a variant describes. All kinds share
// the same draft/published/snapshot/history lifecycle; the kind tag scopes
// authorization and keeps one generic pipeline instead of four parallel ones.
type Kind string

const (
	KindAgency Kind = "agency"
	KindGroup  Kind = "group"
	KindWork   Kind = "work"
	KindTalent Kind = "talent"
)

// Valid reports whether k is one of the known subject kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAgency, KindGroup, KindWork, KindTalent:
		return true
	}
	return false
}
