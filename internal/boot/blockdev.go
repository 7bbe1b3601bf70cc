package boot

import "github.com/sloplabs/slopos/internal/drivers/virtioblk"

const sectorSize = 512

// sectorBlockDevice adapts virtioblk.Device's LBA/sector-count API to
// vfs.BlockDevice's flat byte-offset one. Reads/writes that don't fall on a
// sector boundary go through a one-sector scratch buffer; ext2 metadata and
// data block reads from internal/vfs are always sector-aligned in practice,
// so the slow path only matters for a misbehaving caller.
type sectorBlockDevice struct {
	dev *virtioblk.Device
}

func newSectorBlockDevice(dev *virtioblk.Device) *sectorBlockDevice {
	return &sectorBlockDevice{dev: dev}
}

func (d *sectorBlockDevice) Capacity() uint64 { return d.dev.Capacity() * sectorSize }

func (d *sectorBlockDevice) ReadAt(offset uint64, buf []byte) error {
	for len(buf) > 0 {
		lba := offset / sectorSize
		within := offset % sectorSize
		var scratch [sectorSize]byte
		if err := d.dev.ReadSectors(lba, scratch[:]); err != nil {
			return err
		}
		n := copy(buf, scratch[within:])
		buf = buf[n:]
		offset += uint64(n)
	}
	return nil
}

func (d *sectorBlockDevice) WriteAt(offset uint64, buf []byte) error {
	for len(buf) > 0 {
		lba := offset / sectorSize
		within := offset % sectorSize
		var scratch [sectorSize]byte
		if within != 0 || len(buf) < sectorSize {
			if err := d.dev.ReadSectors(lba, scratch[:]); err != nil {
				return err
			}
		}
		n := copy(scratch[within:], buf)
		if err := d.dev.WriteSectors(lba, scratch[:]); err != nil {
			return err
		}
		buf = buf[n:]
		offset += uint64(n)
	}
	return nil
}
