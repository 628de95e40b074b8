package models

// Principal is the authenticated actor on whose behalf an operation runs.
// Identity management is external; this core only forwards the principal to
// the policy gate.
type Principal struct {
	ID    string
	Roles []string
}

// ResourceDescriptor is the uniform scope every policy check is evaluated
// against, derived from the subject kind and its agency/group/talent nesting.
type ResourceDescriptor struct {
	Kind             Kind
	TranslationSetID string
	Scope            Scope
}
