package vmm

import (
	"sync/atomic"

	"github.com/sloplabs/slopos/internal/arch"
	"github.com/sloplabs/slopos/internal/irq"
	"github.com/sloplabs/slopos/internal/ksync"
)

// ShootdownLocal invalidates a single page's TLB entry on the current CPU.
func ShootdownLocal(va uintptr) { arch.INVLPG(va) }

// shootdownMailbox carries the pending request every CPU reads when it
// takes a TLBShootdownVector IPI: either a single page (count==1) or a full
// flush (count==0, meaning "too many pages, just reload CR3").
type shootdownMailbox struct {
	addrs [8]uintptr
	count int
}

var (
	mailbox   ksync.IrqMutex[shootdownMailbox]
	acked     atomic.Int32
	broadcast func(vector uint8) // set by RegisterIPISender
)

// RegisterIPISender wires this package to a LAPIC so Shootdown can actually
// broadcast; boot calls this once the BSP's LAPIC is mapped.
func RegisterIPISender(send func(vector uint8)) {
	broadcast = send
	irq.RegisterIPIHandler(irq.TLBShootdownVector, handleShootdownIPI)
}

func handleShootdownIPI(any) {
	g := mailbox.Lock()
	addrs := append([]uintptr(nil), g.Get().addrs[:g.Get().count]...)
	full := g.Get().count == 0
	g.Unlock()

	if full {
		arch.WriteCR3(arch.ReadCR3())
	} else {
		for _, a := range addrs {
			arch.INVLPG(a)
		}
	}
	acked.Add(1)
}

// Shootdown invalidates va on every other CPU (and locally), used after
// unmapping or downgrading a PTE in a page directory another CPU might have
// cached. nCPUsMinusSelf is how many acks to wait for.
func Shootdown(va uintptr, nCPUsMinusSelf int) {
	ShootdownLocal(va)
	if broadcast == nil || nCPUsMinusSelf == 0 {
		return
	}
	g := mailbox.Lock()
	g.Get().addrs[0] = va
	g.Get().count = 1
	g.Unlock()

	acked.Store(0)
	broadcast(irq.TLBShootdownVector)
	for int(acked.Load()) < nCPUsMinusSelf {
		arch.Pause()
	}
}

// ShootdownAll requests a full TLB flush (CR3 reload) on every other CPU,
// used when more pages changed than fit the mailbox's small address list.
func ShootdownAll(nCPUsMinusSelf int) {
	arch.WriteCR3(arch.ReadCR3())
	if broadcast == nil || nCPUsMinusSelf == 0 {
		return
	}
	g := mailbox.Lock()
	g.Get().count = 0
	g.Unlock()

	acked.Store(0)
	broadcast(irq.TLBShootdownVector)
	for int(acked.Load()) < nCPUsMinusSelf {
		arch.Pause()
	}
}
