package fixi

// runTell runs the body once per target with you bound to the target. The
// caller's you and it are restored afterwards, even when the body faults or
// signals.
func (exec *Execution) runTell(c *TellCommand, frame *Frame) (Value, Signal, error) {
	elems, err := exec.targets(c.Target, frame)
	if err != nil {
		return Undefined(), noSignal, err
	}
	savedYou, savedIt := frame.you, frame.it
	defer func() {
		frame.you, frame.it = savedYou, savedIt
	}()

	result := Undefined()
	for _, el := range elems {
		child := frame.Child(Undefined())
		child.you = NewElement(el)
		val, sig, err := exec.RunCommands(c.Body, child)
		if err != nil {
			return Undefined(), noSignal, err
		}
		result = val
		if sig.Active() {
			return result, sig, nil
		}
	}
	return result, noSignal, nil
}

// runAsync detaches the body onto its own task with a private copy of the
// frame. The caller continues immediately.
func (exec *Execution) runAsync(c *AsyncCommand, frame *Frame) {
	clone := frame.Clone()
	clone.flags = Flags{Async: true}
	clone.parent = nil
	clone.locals = frame.visibleLocals()
	exec.runtime.spawn(exec.ctx, "async", clone, c.Body)
}
