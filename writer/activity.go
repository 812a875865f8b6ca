package writer

// ActivityKind names a user input event reported by the host UI.
type ActivityKind string

const (
	ActivityPointerDown ActivityKind = "pointerdown"
	ActivityKeyDown     ActivityKind = "keydown"
	ActivityScroll      ActivityKind = "scroll"
	ActivityTouchStart  ActivityKind = "touchstart"
	ActivityClick       ActivityKind = "click"
	// ActivityVisible is reported when the page becomes visible again.
	ActivityVisible ActivityKind = "visible"
)

// Qualifies reports whether the event counts as user activity for idle
// detection. Passive events such as pointer moves do not.
func (k ActivityKind) Qualifies() bool {
	switch k {
	case ActivityPointerDown, ActivityKeyDown, ActivityScroll, ActivityTouchStart, ActivityClick, ActivityVisible:
		return true
	}
	return false
}
