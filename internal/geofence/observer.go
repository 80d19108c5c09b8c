package geofence

// Observer receives status events. OnEvent runs on the update path, in
// order, and must not call Start or Stop on the monitor that invoked it.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}
