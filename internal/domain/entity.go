package domain

// Kind names a catalog collection; it doubles as the URL segment.
type Kind string

const (
	KindTeam       Kind = "teams"
	KindPermission Kind = "permissions"
	KindAsset      Kind = "assets"
	KindArtifact   Kind = "artifacts"
	KindProject    Kind = "projects"
	KindRelease    Kind = "releases"
	KindCriterion  Kind = "criteria"
	KindGate       Kind = "gates"
)

// Kinds lists every catalog collection in routing order.
var Kinds = []Kind{KindTeam, KindPermission, KindAsset, KindArtifact, KindProject, KindRelease, KindGate, KindCriterion}

// Entity is implemented by every catalog document.
type Entity interface {
	Kind() Kind
	Validate() error
}
