package main

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"

	"retrogfx/internal/logger"
	"retrogfx/internal/termview"
	"retrogfx/pkg/config"
	"retrogfx/pkg/engine"
	"retrogfx/pkg/glgpu"
	"retrogfx/pkg/gpu"
	"retrogfx/pkg/softgpu"
)

// loop drives the scene until frames have been drawn or step reports false
func loop(s *scene, frames, frameRate int, step func() bool) error {
	for tick := uint64(0); frames <= 0 || tick < uint64(frames); tick++ {
		start := time.Now()
		if !step() {
			return nil
		}
		if err := s.draw(tick); err != nil {
			return err
		}

		// Cap the frame rate
		if frameRate > 0 {
			frameTime := time.Since(start)
			target := time.Second / time.Duration(frameRate)
			if frameTime < target {
				time.Sleep(target - frameTime)
			}
		}
	}
	return nil
}

func newRenderer(dev gpu.Device, opts engine.Options) (*engine.Renderer, *scene, error) {
	r, err := engine.New(dev, opts)
	if err != nil {
		return nil, nil, err
	}
	s, err := newScene(r)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	return r, s, nil
}

func runHeadless(cfg *config.Config, opts engine.Options, log *logger.Logger, frames, interval int, dir string) error {
	if interval > 0 {
		if dir == "" {
			tmp, err := os.MkdirTemp("", "retrodemo-snapshots-*")
			if err != nil {
				return errors.Wrap(err, "failed to create snapshot directory")
			}
			dir = tmp
		} else if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create snapshot directory")
		}
	}

	dev := softgpu.New(cfg.Display.Width*cfg.Window.Scale, cfg.Display.Height*cfg.Window.Scale)
	r, s, err := newRenderer(dev, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	for i := 0; i < frames; i++ {
		if err := s.draw(uint64(i)); err != nil {
			return err
		}
		if interval > 0 && (i+1)%interval == 0 {
			path := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", i+1))
			if err := savePNG(dev, path); err != nil {
				log.Errorf("failed to save snapshot %s: %v", path, err)
			} else {
				log.Debugf("saved snapshot %s", path)
			}
		}
		if i%60 == 0 {
			log.Debugf("frame %d/%d, %d flushes", i+1, frames, r.Stats().TotalFlushes())
		}
	}
	if interval > 0 {
		log.Infof("headless run completed: %d frames, snapshots in %s", frames, dir)
	} else {
		log.Infof("headless run completed: %d frames", frames)
	}
	return nil
}

func savePNG(dev *softgpu.Device, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dev.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runTerminal(cfg *config.Config, opts engine.Options, log *logger.Logger, frames int) error {
	view, err := termview.New()
	if err != nil {
		return err
	}
	defer view.Close()

	dev := softgpu.New(view.Size())
	r, s, err := newRenderer(termPresenter{dev, view}, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	return loop(s, frames, cfg.Window.FrameRate, func() bool {
		for {
			select {
			case ev, ok := <-view.Events():
				if !ok || ev == termview.EventQuit {
					return false
				}
				if ev == termview.EventKey {
					select {
					case k := <-view.Keys():
						switch k {
						case 'n', ' ':
							s.step(1)
						case 'p':
							s.step(-1)
						}
					default:
					}
				}
				if ev == termview.EventResize {
					w, h := view.Size()
					log.Debugf("terminal resized to %dx%d pixels", w, h)
					dev.Resize(w, h)
				}
			default:
				return true
			}
		}
	})
}

// termPresenter shows the software display in the terminal on Present
type termPresenter struct {
	*softgpu.Device
	view *termview.View
}

func (t termPresenter) Present() error {
	if err := t.Device.Present(); err != nil {
		return err
	}
	t.view.Draw(t.Device.Image())
	return nil
}

func runWindow(cfg *config.Config, opts engine.Options, log *logger.Logger, frames int) error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize GLFW")
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	width, height := cfg.Display.Width*cfg.Window.Scale, cfg.Display.Height*cfg.Window.Scale
	var monitor *glfw.Monitor
	if cfg.Window.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
		mode := monitor.GetVideoMode()
		width, height = mode.Width, mode.Height
	}
	window, err := glfw.CreateWindow(width, height, cfg.Window.Title, monitor, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create GLFW window")
	}
	defer window.Destroy()
	window.MakeContextCurrent()
	if cfg.Window.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	fbw, fbh := window.GetFramebufferSize()
	dev, err := glgpu.New(fbw, fbh, window.SwapBuffers)
	if err != nil {
		return err
	}
	defer dev.Close()
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		log.Debugf("framebuffer resized to %dx%d", w, h)
		dev.SetDisplaySize(w, h)
	})

	r, s, err := newRenderer(dev, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	input := newKeyInput(window, glfw.KeyEscape, glfw.KeyRight, glfw.KeyLeft, glfw.KeySpace)
	return loop(s, frames, cfg.Window.FrameRate, func() bool {
		glfw.PollEvents()
		input.Update()
		switch {
		case input.IsKeyPressed(glfw.KeyRight), input.IsKeyPressed(glfw.KeySpace):
			s.step(1)
		case input.IsKeyPressed(glfw.KeyLeft):
			s.step(-1)
		}
		return !window.ShouldClose() && !input.IsKeyDown(glfw.KeyEscape)
	})
}
