package connection

// OutcomeKind tags the result of choosing one candidate out of many.
type OutcomeKind int

const (
	NotFound OutcomeKind = iota
	Resolved
	Ambiguous
)

func (k OutcomeKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Outcome is Resolved(Value), Ambiguous(Candidates) or NotFound.
type Outcome[T any] struct {
	Kind       OutcomeKind
	Value      T
	Candidates []T
}

func resolved[T any](v T) Outcome[T] {
	return Outcome[T]{Kind: Resolved, Value: v}
}

func ambiguous[T any](candidates []T) Outcome[T] {
	return Outcome[T]{Kind: Ambiguous, Candidates: candidates}
}

func notFound[T any]() Outcome[T] {
	return Outcome[T]{Kind: NotFound}
}

// selectOne applies the zero/one/many policy.
func selectOne(names []string) Outcome[string] {
	switch len(names) {
	case 0:
		return notFound[string]()
	case 1:
		return resolved(names[0])
	default:
		return ambiguous(append([]string(nil), names...))
	}
}

// selectNamed resolves an explicitly requested name against the candidates.
func selectNamed(names []string, wanted string) Outcome[string] {
	for _, name := range names {
		if name == wanted {
			return resolved(name)
		}
	}
	return notFound[string]()
}
