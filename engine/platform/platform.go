package platform

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/ffbridge/engine/core"
)

var startTime = time.Now()

func init() {
	// glfw must be driven from the main OS thread
	runtime.LockOSThread()
}

// Platform owns the glfw library. No window is ever opened; glfw only
// locates the Vulkan loader.
type Platform struct {
	glfwReady bool
}

func New() *Platform {
	return &Platform{}
}

// Startup initialises glfw. Failure is not fatal: the backend then falls
// back to the default loader lookup.
func (p *Platform) Startup() {
	if err := glfw.Init(); err != nil {
		core.LogWarn("glfw unavailable, using default Vulkan loader: %s", err)
		return
	}
	if !glfw.VulkanSupported() {
		core.LogWarn("glfw found no Vulkan loader, using default lookup")
		glfw.Terminate()
		return
	}
	p.glfwReady = true
}

// InstanceProcAddr returns vkGetInstanceProcAddr as found by glfw, or nil.
func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	if !p.glfwReady {
		return nil
	}
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Platform) Shutdown() {
	if p.glfwReady {
		glfw.Terminate()
		p.glfwReady = false
	}
}

// GetAbsoluteTime returns seconds since the process started.
func (p *Platform) GetAbsoluteTime() float64 {
	if p.glfwReady {
		return glfw.GetTime()
	}
	return time.Since(startTime).Seconds()
}
