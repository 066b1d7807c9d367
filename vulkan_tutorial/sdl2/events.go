package main

import (
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/triangle/present"
)

// sdlEvents adapts the SDL event queue to present.EventSource
type sdlEvents struct {
	windowID uint32
	// drawableSize reports the size of the window's surface in pixels, which can differ
	// from the window size on high-DPI displays
	drawableSize func() (int32, int32)
	poll         func() sdl.Event
}

func newSDLEvents(window *sdl.Window) (*sdlEvents, error) {
	windowID, err := window.GetID()
	if err != nil {
		return nil, err
	}

	return &sdlEvents{
		windowID:     windowID,
		drawableSize: window.VulkanGetDrawableSize,
		poll:         sdl.PollEvent,
	}, nil
}

func (e *sdlEvents) PollEvent() (present.Event, bool) {
	for event := e.poll(); event != nil; event = e.poll() {
		translated, ok := e.translate(event)
		if ok {
			return translated, true
		}
	}
	return present.Event{}, false
}

func (e *sdlEvents) translate(event sdl.Event) (present.Event, bool) {
	switch ev := event.(type) {
	case *sdl.QuitEvent:
		return present.Event{Kind: present.EventCloseRequested, WindowID: e.windowID}, true
	case *sdl.WindowEvent:
		switch ev.Event {
		case sdl.WINDOWEVENT_CLOSE:
			return present.Event{Kind: present.EventCloseRequested, WindowID: ev.WindowID}, true
		case sdl.WINDOWEVENT_MINIMIZED:
			return present.Event{Kind: present.EventMinimized, WindowID: ev.WindowID}, true
		case sdl.WINDOWEVENT_RESTORED:
			return present.Event{Kind: present.EventRestored, WindowID: ev.WindowID}, true
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			w, h := ev.Data1, ev.Data2
			if ev.WindowID == e.windowID && e.drawableSize != nil {
				w, h = e.drawableSize()
			}
			return present.Event{Kind: present.EventResized, WindowID: ev.WindowID, Width: int(w), Height: int(h)}, true
		}
	}

	return present.Event{}, false
}
