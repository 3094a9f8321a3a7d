package modelloader

import "math"

// AdjustStackMemory raises the device stack configuration to the model's
// requirement plus the configured margin when the current configuration is
// too small. It reports whether the configuration changed. Run it once
// before the first execution of the model.
func (m *ModelLoader) AdjustStackMemory() (bool, error) {
	const op = "AdjustStackMemory"
	if m.d.closed {
		return false, newError(ErrUnavailable, op, "model is closed")
	}
	rt := m.d.st.Runtime

	required, st := rt.QueryModelStackSize(m.d.st.Model)
	if !st.OK() {
		return false, statusError(op, "query model stack size", st)
	}
	m.d.log.Debug("model stack size", "mb", required)

	current, st := rt.StackMem()
	if !st.OK() {
		return false, statusError(op, "get current device stack size", st)
	}
	m.d.log.Debug("current device stack size", "mb", current)

	if required <= uint64(current) {
		return false, nil
	}
	if required > math.MaxUint32-uint64(m.d.stackMargin) {
		return false, newError(ErrInternal, op, "stack requirement %d MB exceeds device range", required)
	}
	target := required + uint64(m.d.stackMargin)
	if st := rt.SetStackMem(uint32(target)); !st.OK() {
		return false, statusError(op, "set stack size", st)
	}
	m.d.log.Info("adjusted stack memory", "mb", target)
	return true, nil
}
