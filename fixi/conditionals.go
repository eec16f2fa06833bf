package fixi

// Branch reports which arm of a conditional ran.
type Branch int

const (
	BranchNone Branch = iota
	BranchThen
	BranchElse
)

func (b Branch) String() string {
	switch b {
	case BranchThen:
		return "then"
	case BranchElse:
		return "else"
	default:
		return "none"
	}
}

// BranchResult is the outcome of RunIf and RunUnless.
type BranchResult struct {
	Branch Branch
	Value  Value
	Signal Signal
}

// conditionHolds evaluates a branch condition. A bare name that resolves to
// nothing reads as its own text and is therefore truthy.
func (exec *Execution) conditionHolds(cond Expression, frame *Frame) (bool, error) {
	if id, ok := cond.(*Identifier); ok {
		val, found, err := exec.resolveIdentifier(id, frame)
		if err != nil {
			return false, err
		}
		if !found {
			return id.Name != "", nil
		}
		return val.Truthy(), nil
	}
	val, err := exec.evaluate(cond, frame)
	if err != nil {
		return false, err
	}
	return val.Truthy(), nil
}

// RunIf runs the then arm when the condition holds and the else arm, if
// any, otherwise. Both arms run in frame. A halt raised by the condition is
// reported as the result signal with BranchNone.
func (exec *Execution) RunIf(c *IfCommand, frame *Frame) (BranchResult, error) {
	return signalBranch(exec.runIf(c, frame))
}

func (exec *Execution) runIf(c *IfCommand, frame *Frame) (BranchResult, error) {
	if len(c.Then) == 0 {
		return BranchResult{}, exec.faultAt(ErrMissingCommand, c.Pos(), "if requires at least one command")
	}
	holds, err := exec.conditionHolds(c.Condition, frame)
	if err != nil {
		return BranchResult{}, err
	}
	arm, branch := c.Then, BranchThen
	if !holds {
		if c.Else == nil {
			return BranchResult{Branch: BranchNone}, nil
		}
		arm, branch = c.Else, BranchElse
	}
	val, sig, err := exec.RunCommands(arm, frame)
	if err != nil {
		return BranchResult{}, err
	}
	return BranchResult{Branch: branch, Value: val, Signal: sig}, nil
}

// RunUnless runs the body when the condition does not hold.
func (exec *Execution) RunUnless(c *UnlessCommand, frame *Frame) (BranchResult, error) {
	return signalBranch(exec.runUnless(c, frame))
}

func (exec *Execution) runUnless(c *UnlessCommand, frame *Frame) (BranchResult, error) {
	if len(c.Body) == 0 {
		return BranchResult{}, exec.faultAt(ErrMissingCommand, c.Pos(), "unless requires at least one command")
	}
	holds, err := exec.conditionHolds(c.Condition, frame)
	if err != nil {
		return BranchResult{}, err
	}
	if holds {
		return BranchResult{Branch: BranchNone}, nil
	}
	val, sig, err := exec.RunCommands(c.Body, frame)
	if err != nil {
		return BranchResult{}, err
	}
	return BranchResult{Branch: BranchThen, Value: val, Signal: sig}, nil
}

func signalBranch(res BranchResult, err error) (BranchResult, error) {
	if sig, ok := asSignal(err); ok {
		return BranchResult{Branch: BranchNone, Value: Undefined(), Signal: sig}, nil
	}
	return res, err
}
