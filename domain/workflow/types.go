package workflow

// Property keys used on workflow_status and workflow_transition entities.
const (
	StatusEntityType     = "workflow_status"
	TransitionEntityType = "workflow_transition"

	RelTransitionFrom = "transition_from"
	RelTransitionTo   = "transition_to"

	propScope              = "entity_type_scope"
	propStatusCode         = "status_code"
	propLabel              = "label"
	propOrder              = "order"
	propIsInitial          = "is_initial"
	propIsTerminal         = "is_terminal"
	propFromStatusCode     = "from_status_code"
	propToStatusCode       = "to_status_code"
	propTransitionLabel    = "transition_label"
	propRequiredPermission = "required_permission"
	propRequiresOutcome    = "requires_outcome"
	propCondition          = "condition"
)

// Status is a workflow state for a given entity type scope. It is stored as
// an entity of type workflow_status named "{scope}.{code}".
type Status struct {
	ID         int64  `json:"id"`
	Scope      string `json:"entity_type_scope"`
	Code       string `json:"status_code"`
	Label      string `json:"label"`
	Order      int64  `json:"order"`
	IsInitial  bool   `json:"is_initial"`
	IsTerminal bool   `json:"is_terminal"`
}

// Transition is a directed edge between two statuses of the same scope.
// Stored as an entity of type workflow_transition named
// "{scope}.{from}_to_{to}", linked to its statuses by transition_from and
// transition_to relations, with from/to codes denormalized into properties.
type Transition struct {
	ID                 int64  `json:"id"`
	Scope              string `json:"entity_type_scope"`
	FromStatusCode     string `json:"from_status_code"`
	ToStatusCode       string `json:"to_status_code"`
	Label              string `json:"transition_label"`
	RequiredPermission string `json:"required_permission"`
	RequiresOutcome    bool   `json:"requires_outcome"`
	Condition          string `json:"condition,omitempty"`
}

// AvailableTransition describes a legal next step for UI rendering.
type AvailableTransition struct {
	ToStatusCode    string `json:"to_status_code"`
	Label           string `json:"transition_label"`
	RequiresOutcome bool   `json:"requires_outcome"`
}

// Scope summarizes one workflow scope with its definition counts.
type Scope struct {
	Scope           string `json:"scope"`
	StatusCount     int    `json:"status_count"`
	TransitionCount int    `json:"transition_count"`
}

// PermissionSet is the caller-supplied set of permission codes. The engine
// never resolves permissions itself.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission codes.
func NewPermissionSet(codes ...string) PermissionSet {
	s := make(PermissionSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the given permission code.
func (p PermissionSet) Has(code string) bool {
	_, ok := p[code]
	return ok
}
