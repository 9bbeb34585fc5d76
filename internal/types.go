package internal

type ComponentType string

const (
	ComponentAnchor    ComponentType = "anchor"
	ComponentShackle   ComponentType = "shackle"
	ComponentChain     ComponentType = "chain"
	ComponentRope      ComponentType = "rope"
	ComponentBuoy      ComponentType = "buoy"
	ComponentSwivel    ComponentType = "swivel"
	ComponentThimble   ComponentType = "thimble"
	ComponentConnector ComponentType = "connector"
	ComponentSinker    ComponentType = "sinker"
	ComponentUnknown   ComponentType = "unknown"
)

type PositionType string

const (
	PositionCorner  PositionType = "corner"
	PositionFrame   PositionType = "frame"
	PositionBottom  PositionType = "bottom"
	PositionSpread  PositionType = "spread"
	PositionUnknown PositionType = "unknown"
)

// Resolution records how a component's ambiguous fields were settled.
type Resolution string

const (
	ResolvedDeterministic Resolution = "deterministic"
	ResolvedFromCache     Resolution = "cache"
	ResolvedExternal      Resolution = "external"
	ResolvedFallback      Resolution = "fallback"
)

// RawRow is one document row as read from a sheet: cell texts in column
// order, before any header mapping.
type RawRow struct {
	Number int
	Cells  []string
}

type Sheet struct {
	Name string
	Rows []RawRow
}

// NormalizedRow is a RawRow mapped onto the fixed semantic schema. Every
// field is independently optional; absence is the empty string (nil for
// quantity).
type NormalizedRow struct {
	SourceRow   int
	Position    string
	Sequence    string
	Type        string
	Subtype     string
	Identifier  string
	Tracking    string
	Installer   string
	InstallDate string
	Quantity    *float64
	RawText     string
}

type Specifications struct {
	WeightKg   *float64 `json:"weightKg,omitempty"`
	LengthM    *float64 `json:"lengthM,omitempty"`
	DiameterMm *float64 `json:"diameterMm,omitempty"`
	CapacityT  *float64 `json:"capacityT,omitempty"`
}

func (s Specifications) Empty() bool {
	return s.WeightKg == nil && s.LengthM == nil && s.DiameterMm == nil && s.CapacityT == nil
}

type ComponentRecord struct {
	Sequence       *int
	ComponentType  ComponentType
	Subtype        *string
	RawDescription string
	Manufacturer   *string
	TrackingNumber *string
	PartNumber     *string
	Specs          Specifications
	InstallDate    *string
	Quantity       float64
	Confidence     float64
	Resolution     Resolution
	SourceRow      int
	Match          *MatchResult
}

// PositionGroup holds the components of one document position reference,
// ordered by sequence.
type PositionGroup struct {
	DocumentReference  string
	PositionType       PositionType
	SourceSheet        string
	Components         []ComponentRecord
	InternalPositionID *int
	PositionName       *string
	MappingFound       bool
}

// PositionMapping links a document position reference to a position in the
// host database. Supplied by the caller; absence never blocks extraction.
type PositionMapping struct {
	DocumentReference  string
	InternalPositionID int
	PositionName       string
	PositionType       string
}

type ProductRecord struct {
	ID           int
	PartNumber   *string
	Name         string
	Type         ComponentType
	Manufacturer *string
	Specs        Specifications
	UpdatedAt    *string
	RawJSON      string
}

type MatchReason string

const (
	ReasonPartNumber   MatchReason = "PART_NUMBER"
	ReasonTypeSpecDesc MatchReason = "TYPE_SPEC_DESC"
	ReasonTypeSpec     MatchReason = "TYPE_SPEC"
	ReasonNone         MatchReason = "NONE"
)

type MatchCandidate struct {
	ProductID int     `json:"productId"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
}

type MatchResult struct {
	ProductID   *int             `json:"productId"`
	ProductName *string          `json:"productName"`
	Confidence  float64          `json:"confidence"`
	Reason      MatchReason      `json:"reason"`
	Candidates  []MatchCandidate `json:"candidates"`
}

// ResolverStats counts how ambiguous rows were settled during one import.
type ResolverStats struct {
	Dispatched int
	CacheHits  int
	External   int
	Fallbacks  int
}

// ImportResult is the per-file outcome. Errors collects sheet-level
// failures; a non-empty list does not mean the import as a whole failed.
type ImportResult struct {
	ImportID int64
	File     string
	Sheets   int
	Rows     int
	Kept     int
	Groups   []PositionGroup
	Resolver ResolverStats
	Errors   []string
}

// ImportRow mirrors one persisted import.
type ImportRow struct {
	ID        int64
	File      string
	Hash      string
	Status    string
	Sheets    int
	Rows      int
	Kept      int
	CreatedAt string
}

type ComponentExportRow struct {
	DocumentReference  string
	PositionType       string
	SourceSheet        string
	InternalPositionID *int
	PositionName       *string
	MappingFound       bool
	Sequence           *int
	ComponentType      string
	Subtype            *string
	RawDescription     string
	Manufacturer       *string
	TrackingNumber     *string
	PartNumber         *string
	WeightKg           *float64
	LengthM            *float64
	DiameterMm         *float64
	CapacityT          *float64
	InstallDate        *string
	Quantity           float64
	Confidence         float64
	Resolution         string
	MatchedProductID   *int
	MatchedProductName *string
	MatchConfidence    *float64
	MatchReason        *string
}
