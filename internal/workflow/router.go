package workflow

// Route is the decision taken after reflect.
type Route string

const (
	RouteImprove  Route = "improve"
	RouteFinalize Route = "finalize"
)

const (
	// QualityThreshold is the lowest score accepted without improvement.
	QualityThreshold = 7.0

	// MaxImproveIterations bounds the reflect/improve loop. Reflect bumps
	// IterationCount, so once it reaches this value the run finalizes.
	MaxImproveIterations = 2
)

// Decide routes to improve while the score is below QualityThreshold and the
// iteration budget is not spent.
func Decide(s State) Route {
	if s.QualityScore < QualityThreshold && s.IterationCount < MaxImproveIterations {
		return RouteImprove
	}
	return RouteFinalize
}

// transition is an edge out of a stage: either a fixed next stage or a
// routing function.
type transition struct {
	next  Stage
	route func(State) Stage
}

var transitions = map[Stage]transition{
	StageResearch: {next: StageGenerate},
	StageGenerate: {next: StageReflect},
	StageReflect:  {route: routeAfterReflect},
	StageImprove:  {next: StageReflect},
	StageFinalize: {next: StageEnd},
}

func routeAfterReflect(s State) Stage {
	if Decide(s) == RouteImprove {
		return StageImprove
	}
	return StageFinalize
}

func nextStage(current Stage, s State) Stage {
	t, ok := transitions[current]
	if !ok {
		return StageEnd
	}
	if t.route != nil {
		return t.route(s)
	}
	return t.next
}
