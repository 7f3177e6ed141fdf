package ak09916

import (
	"fmt"

	"github.com/relabs-tech/auxmag/internal/icm20948"
)

// Direction of a proxied transfer.
type Direction uint8

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// BridgeConfig mirrors what is programmed into the host's I2C_SLV0 registers.
// The target can only change while Enabled is false.
type BridgeConfig struct {
	Addr    byte
	Reg     byte
	Size    int
	Dir     Direction
	Enabled bool
}

func (c BridgeConfig) String() string {
	return fmt.Sprintf("slv0{addr=0x%02X reg=0x%02X size=%d %s enabled=%t}", c.Addr, c.Reg, c.Size, c.Dir, c.Enabled)
}

// streaming reports whether the proxy auto-refreshes the full ST1..ST2 window.
func (c BridgeConfig) streaming() bool {
	return c.Enabled && c.Dir == Read && c.Reg == RegST1 && c.Size == FrameSize
}

// addrByte is the SLV0_ADDR value including the read flag.
func (c BridgeConfig) addrByte() byte {
	if c.Dir == Read {
		return c.Addr | icm20948.BitI2CSlvRead
	}
	return c.Addr
}

// retarget points c at a new transfer. It refuses while c is enabled.
func (c *BridgeConfig) retarget(reg byte, size int, dir Direction) error {
	if c.Enabled {
		return fmt.Errorf("%w: %s", ErrBridgeBusy, c)
	}
	if err := checkTransfer(reg, size); err != nil {
		return err
	}
	c.Addr = I2CAddr
	c.Reg = reg
	c.Size = size
	c.Dir = dir
	return nil
}

func checkTransfer(reg byte, size int) error {
	if reg > 0x7F {
		return fmt.Errorf("%w: 0x%02X", ErrRegisterRange, reg)
	}
	if size < 1 || size > FrameSize {
		return fmt.Errorf("%w: %d not in 1..%d", ErrTransferSize, size, FrameSize)
	}
	return nil
}

// Bridge drives the host's I2C_SLV0 proxy so that the host master performs
// one AK09916 transfer.
type Bridge struct {
	host Host
	cfg  BridgeConfig
}

// Config returns the last programmed configuration.
func (b *Bridge) Config() BridgeConfig { return b.cfg }

// Begin programs a transfer of size bytes at reg. A non-nil out makes it a
// one byte write of *out, otherwise it is a read landing in
// EXT_SLV_SENS_DATA_00. The proxy is always disabled before it is
// reprogrammed and left enabled on return.
func (b *Bridge) Begin(reg byte, size int, out *byte) error {
	if err := checkTransfer(reg, size); err != nil {
		return err
	}
	dir := Read
	if out != nil {
		dir = Write
	}

	if err := b.Disable(); err != nil {
		return err
	}
	if err := b.cfg.retarget(reg, size, dir); err != nil {
		return err
	}
	if out != nil {
		if err := b.host.WriteReg(icm20948.I2CSlv0DO, *out); err != nil {
			return fmt.Errorf("ak09916: stage SLV0_DO: %w", err)
		}
	}
	if err := b.host.WriteReg(icm20948.I2CSlv0Addr, b.cfg.addrByte()); err != nil {
		return fmt.Errorf("ak09916: program SLV0_ADDR: %w", err)
	}
	if err := b.host.WriteReg(icm20948.I2CSlv0Reg, reg); err != nil {
		return fmt.Errorf("ak09916: program SLV0_REG: %w", err)
	}
	if err := b.host.WriteReg(icm20948.I2CSlv0Ctrl, byte(size)|icm20948.BitI2CSlvEn); err != nil {
		return fmt.Errorf("ak09916: enable SLV0: %w", err)
	}
	b.cfg.Enabled = true
	return nil
}

// Disable stops any proxied transfer. A failed write keeps the bridge marked
// enabled so it cannot be retargeted.
func (b *Bridge) Disable() error {
	if err := b.host.WriteReg(icm20948.I2CSlv0Ctrl, 0); err != nil {
		return fmt.Errorf("ak09916: disable SLV0: %w", err)
	}
	b.cfg.Enabled = false
	return nil
}
