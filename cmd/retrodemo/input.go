package main

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

// keyInput tracks the keys the demo reacts to, so a press is seen once
type keyInput struct {
	window   *glfw.Window
	keys     []glfw.Key
	current  map[glfw.Key]bool
	previous map[glfw.Key]bool
}

func newKeyInput(window *glfw.Window, keys ...glfw.Key) *keyInput {
	return &keyInput{
		window:   window,
		keys:     keys,
		current:  make(map[glfw.Key]bool),
		previous: make(map[glfw.Key]bool),
	}
}

// Update samples the tracked keys; call it once per frame after PollEvents
func (ki *keyInput) Update() {
	ki.current, ki.previous = ki.previous, ki.current
	for _, key := range ki.keys {
		ki.current[key] = ki.window.GetKey(key) == glfw.Press
	}
}

// IsKeyDown reports whether key is held
func (ki *keyInput) IsKeyDown(key glfw.Key) bool {
	return ki.current[key]
}

// IsKeyPressed reports whether key went down this frame
func (ki *keyInput) IsKeyPressed(key glfw.Key) bool {
	return ki.current[key] && !ki.previous[key]
}
