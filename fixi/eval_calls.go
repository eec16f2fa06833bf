package fixi

func (exec *Execution) evalArgs(exprs []Expression, frame *Frame) ([]Value, error) {
	args := make([]Value, len(exprs))
	for i, expr := range exprs {
		val, err := exec.evaluate(expr, frame)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}
	return args, nil
}

func (exec *Execution) evalCall(call *Call, frame *Frame) (Value, error) {
	switch callee := call.Callee.(type) {
	case *Identifier:
		if callee.Scope == ScopeAny && !call.IsConstructor {
			if entry, ok := exec.registry().Lookup(callee.Name); ok {
				args, err := exec.evalArgs(call.Args, frame)
				if err != nil {
					return Undefined(), err
				}
				return exec.invokeEntry(entry, frame, args, call.Pos())
			}
		}
		fn, ok := frame.Get(callee.Name, callee.Scope)
		if !ok {
			return Undefined(), exec.faultAt(ErrUnboundFunction, call.Pos(), "%s is not defined", callee.Name)
		}
		if fn.kind != KindFunction {
			return Undefined(), exec.faultAt(ErrUnboundFunction, call.Pos(), "%s is not a function", callee.Name)
		}
		args, err := exec.evalArgs(call.Args, frame)
		if err != nil {
			return Undefined(), err
		}
		return exec.callValue(fn, Undefined(), args, call.IsConstructor, frame, call.Pos())
	case *MemberAccess:
		obj, err := exec.evaluate(callee.Object, frame)
		if err != nil {
			return Undefined(), err
		}
		var method Value
		var name string
		if callee.Computed {
			key, err := exec.evaluate(callee.Property, frame)
			if err != nil {
				return Undefined(), err
			}
			name = key.String()
			method, err = exec.index(obj, key, callee.Pos())
			if err != nil {
				return Undefined(), err
			}
		} else {
			if name, err = exec.propertyName(callee); err != nil {
				return Undefined(), err
			}
			if method, err = exec.property(obj, name, callee.Pos()); err != nil {
				return Undefined(), err
			}
		}
		if method.kind != KindFunction {
			if obj.IsNil() {
				return Undefined(), exec.faultAt(ErrUnboundFunction, call.Pos(), "cannot call %s of %s", name, obj.kind)
			}
			return Undefined(), exec.faultAt(ErrUnboundFunction, call.Pos(), "%s is not a function", name)
		}
		args, err := exec.evalArgs(call.Args, frame)
		if err != nil {
			return Undefined(), err
		}
		return exec.callValue(method, unwrapCollection(obj, name), args, call.IsConstructor, frame, call.Pos())
	default:
		fn, err := exec.evaluate(call.Callee, frame)
		if err != nil {
			return Undefined(), err
		}
		if fn.kind != KindFunction {
			return Undefined(), exec.faultAt(ErrUnboundFunction, call.Pos(), "value is not callable")
		}
		args, err := exec.evalArgs(call.Args, frame)
		if err != nil {
			return Undefined(), err
		}
		return exec.callValue(fn, Undefined(), args, call.IsConstructor, frame, call.Pos())
	}
}

// invokeEntry checks arity, runs the optional validator and evaluates a
// registry entry.
func (exec *Execution) invokeEntry(entry *Entry, frame *Frame, args []Value, pos Position) (Value, error) {
	if err := entry.checkArity(len(args), pos); err != nil {
		return Undefined(), err
	}
	if entry.Validate != nil {
		if err := entry.Validate(args); err != nil {
			return Undefined(), exec.faultAt(ErrInvalidArgument, pos, "%s%s: %v", entry.Name, describeArgs(args), err)
		}
	}
	val, err := entry.Evaluate(exec, frame, args)
	return val, exec.wrapError(err, pos)
}

// Call invokes a callable value. This is the entry point host functions use
// to call back into script code.
func (exec *Execution) Call(fn Value, frame *Frame, args []Value) (Value, error) {
	return exec.callValue(fn, Undefined(), args, false, frame, Position{})
}

func (exec *Execution) callValue(fn Value, this Value, args []Value, construct bool, frame *Frame, pos Position) (Value, error) {
	f := fn.Function()
	if f == nil {
		return Undefined(), exec.faultAt(ErrUnboundFunction, pos, "value is not callable")
	}
	if construct {
		if f.Construct == nil {
			return Undefined(), exec.faultAt(ErrNotConstructor, pos, "%s is not a constructor", f.Name)
		}
		val, err := f.Construct(exec, frame, Undefined(), args)
		return val, exec.wrapError(err, pos)
	}
	if f.def != nil {
		return exec.callDefined(f.def, frame, args, pos)
	}
	if f.Fn == nil {
		return Undefined(), exec.faultAt(ErrUnboundFunction, pos, "%s has no implementation", f.Name)
	}
	val, err := f.Fn(exec, frame, this, args)
	return val, exec.wrapError(err, pos)
}

// callDefined runs a script function in a fresh frame that shares the
// caller's context bindings but none of its locals. A halt inside the body
// travels out as an interrupt.
func (exec *Execution) callDefined(def *DefFeature, caller *Frame, args []Value, pos Position) (Value, error) {
	if err := exec.pushFrame(def.Name, pos); err != nil {
		return Undefined(), err
	}
	defer exec.popFrame()

	frame := &Frame{
		me:        caller.me,
		you:       caller.you,
		it:        Undefined(),
		event:     caller.event,
		evtVal:    caller.evtVal,
		locals:    make(map[string]Value, len(def.Params)),
		globals:   caller.globals,
		variables: caller.variables,
		host:      caller.host,
		flags:     Flags{Async: caller.flags.Async},
	}
	for i, name := range def.Params {
		frame.locals[name] = arg(args, i)
	}

	_, sig, err := exec.RunCommands(def.Body, frame)
	if err != nil {
		return Undefined(), err
	}
	switch sig.Kind {
	case SignalReturn, SignalExit:
		return sig.Value, nil
	case SignalHalt:
		return Undefined(), &interrupt{signal: sig}
	case SignalBreak, SignalContinue:
		exec.log.Debug().Str("function", def.Name).Str("signal", sig.Kind.String()).Msg("signal absorbed at function boundary")
	}
	return Undefined(), nil
}
