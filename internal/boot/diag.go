package boot

import (
	"errors"

	"github.com/sloplabs/slopos/internal/kdiag"
)

var (
	errNoMemmap             = errors.New("boot: Limine handed off no usable memory map")
	errNoFramebuffer        = errors.New("boot: Limine handed off no framebuffer")
	errInitLoadFailed       = errors.New("boot: failed to load /sbin/init")
	errCompositorLoadFailed = errors.New("boot: failed to load /sbin/compositor")
)

func warnStepFailed(p Phase, name string, err error) {
	kdiag.Warn("boot: optional step " + name + " (" + p.String() + ") failed: " + err.Error())
}

func fatalStepFailed(p Phase, name string, err error) {
	kdiag.Panic("boot: step "+name+" ("+p.String()+") failed: "+err.Error(), nil)
}
