package probe

import "encoding/binary"

// Command opcodes (byte 0) and debug sub-commands (byte 1), taken from the
// table in other_examples/ce45148f_bbnote-gostlink__constants.go.go, which
// in turn documents the values OpenOCD's STLink driver uses.
const (
	cmdGetVersion       byte = 0xF1
	cmdDebug            byte = 0xF2
	cmdDFU              byte = 0xF3
	cmdSWIM             byte = 0xF4
	cmdGetCurrentMode   byte = 0xF5
	cmdGetTargetVoltage byte = 0xF7
)

const (
	dbgReadMem32      byte = 0x07
	dbgWriteMem32     byte = 0x08
	dbgReadMem8       byte = 0x0c
	dbgWriteMem8      byte = 0x0d
	dbgExit           byte = 0x21
	dbgApiV2Enter     byte = 0x30
	dbgApiV2ReadIDs   byte = 0x31
	dbgApiV2SetSRST   byte = 0x3C
	dbgApiV2SwdFreq   byte = 0x43
	dbgApiV2ReadAP    byte = 0x45
	dbgApiV2WriteAP   byte = 0x46
	dbgApiV2ReadMem16 byte = 0x47
	dbgApiV2WrMem16   byte = 0x48
	dbgApiV2OpenAP    byte = 0x4B

	dbgEnterSwdNoReset byte = 0xa3

	dbgApiV3SetComFreq   byte = 0x61
	dbgApiV3GetComFreq   byte = 0x62
	dbgApiV3GetVersionEx byte = 0xFB

	dfuExit  byte = 0x07
	swimExit byte = 0x01

	lastXferStatus12 byte = 0x3E
)

func cdb16(bytes ...byte) [16]byte {
	var c [16]byte
	copy(c[:], bytes)
	return c
}

// GetCurrentMode queries the probe's current operating mode (spec.md
// §6.2).
func GetCurrentMode() CDB[Mode] {
	return CDB[Mode]{
		Bytes:  cdb16(cmdGetCurrentMode),
		Flags:  HasDataInPhase,
		RspLen: 2,
		Decode: func(rsp []byte) (Mode, error) { return modeFromWire(rsp[0]), nil },
	}
}

// LeaveDFUMode, LeaveDebugMode and LeaveSWIMMode issue the mode-specific
// exit command so the probe can be moved into SWD (spec.md §4.2's
// MODE_EXIT_CMD table).
func LeaveDFUMode() CDB[struct{}] {
	return CDB[struct{}]{Bytes: cdb16(cmdDFU, dfuExit)}
}

func LeaveDebugMode() CDB[struct{}] {
	return CDB[struct{}]{Bytes: cdb16(cmdDebug, dbgExit)}
}

func LeaveSWIMMode() CDB[struct{}] {
	return CDB[struct{}]{Bytes: cdb16(cmdSWIM, swimExit)}
}

// SWDConnect enters SWD debug mode without asserting reset.
func SWDConnect() CDB[struct{}] {
	return CDB[struct{}]{
		Bytes:  cdb16(cmdDebug, dbgApiV2Enter, dbgEnterSwdNoReset),
		Flags:  HasDataInPhase | HasEmbeddedStatus,
		RspLen: 2,
		Decode: func(rsp []byte) (struct{}, error) { return struct{}{}, nil },
	}
}

// VersionInfo is the decoded response of Version2, the V3-specific
// extended version query (stlink_v3e.py's _usb_version).
type VersionInfo struct {
	STLink, SWIM, JTAG, MSD, Bridge byte
	VID, PID                        uint16
}

// Version2 queries extended firmware version info (V3 probes only).
func Version2() CDB[VersionInfo] {
	return CDB[VersionInfo]{
		Bytes:  cdb16(cmdDebug, dbgApiV3GetVersionEx),
		Flags:  HasDataInPhase,
		RspLen: 12,
		Decode: func(rsp []byte) (VersionInfo, error) {
			return VersionInfo{
				STLink: rsp[0],
				SWIM:   rsp[1],
				JTAG:   rsp[2],
				MSD:    rsp[3],
				Bridge: rsp[4],
				VID:    binary.LittleEndian.Uint16(rsp[8:10]),
				PID:    binary.LittleEndian.Uint16(rsp[10:12]),
			}, nil
		},
	}
}

// ReadIDCodes reads the SWD DPIDR after connecting (stlink_v3e.py's
// _read_dpidr).
func ReadIDCodes() CDB[uint32] {
	return CDB[uint32]{
		Bytes:             cdb16(cmdDebug, dbgApiV2ReadIDs),
		Flags:             HasDataInPhase | HasEmbeddedStatus,
		RspLen:            12,
		Decode: func(rsp []byte) (uint32, error) {
			return binary.LittleEndian.Uint32(rsp[4:8]), nil
		},
	}
}

const maxSWDFreqs = 10

// GetComFreqs returns the probe's supported SWD (or JTAG, if isJtag)
// clock frequencies in kHz, unsorted (stlink_v3e.py's _get_com_freq).
func GetComFreqs(isJtag bool) CDB[[]uint32] {
	jtag := byte(0)
	if isJtag {
		jtag = 1
	}
	return CDB[[]uint32]{
		Bytes:  cdb16(cmdDebug, dbgApiV3GetComFreq, jtag),
		Flags:  HasDataInPhase | HasEmbeddedStatus,
		RspLen: 4 + 4 + 4*maxSWDFreqs,
		Decode: func(rsp []byte) ([]uint32, error) {
			n := int(rsp[4])
			if n > maxSWDFreqs {
				n = maxSWDFreqs
			}
			freqs := make([]uint32, n)
			for i := 0; i < n; i++ {
				off := 8 + 4*i
				freqs[i] = binary.LittleEndian.Uint32(rsp[off : off+4])
			}
			return freqs, nil
		},
	}
}

// SetComFreq requests the named frequency (kHz) and returns the frequency
// actually selected (stlink_v3e.py's _set_com_freq).
func SetComFreq(freqKHz uint32, isJtag bool) CDB[uint32] {
	jtag := byte(0)
	if isJtag {
		jtag = 1
	}
	var cmd [16]byte
	cmd[0] = cmdDebug
	cmd[1] = dbgApiV3SetComFreq
	cmd[2] = jtag
	binary.LittleEndian.PutUint32(cmd[4:8], freqKHz)
	return CDB[uint32]{
		Bytes:  cmd,
		Flags:  HasDataInPhase | HasEmbeddedStatus,
		RspLen: 8,
		Decode: func(rsp []byte) (uint32, error) {
			return binary.LittleEndian.Uint32(rsp[4:8]), nil
		},
	}
}

// bulkReadCDB builds one of BulkRead8/16/32: opcode, 32-bit address, 32-bit
// count and the AP selector, reading n*unit bytes back.
func bulkReadCDB(opcode byte, addr uint32, n int, apNum int, unit int) CDB[[]byte] {
	var cmd [16]byte
	cmd[0] = cmdDebug
	cmd[1] = opcode
	binary.LittleEndian.PutUint32(cmd[2:6], addr)
	binary.LittleEndian.PutUint32(cmd[6:10], uint32(n))
	cmd[10] = byte(apNum)
	return CDB[[]byte]{
		Bytes:  cmd,
		Flags:  HasDataInPhase,
		RspLen: n * unit,
		Decode: func(rsp []byte) ([]byte, error) {
			out := make([]byte, len(rsp))
			copy(out, rsp)
			return out, nil
		},
	}
}

// BulkRead8 reads n bytes via the probe's 8-bit bulk path. Open question
// (spec.md §9): some firmware returns a minimum of 2 response bytes even
// for a 1-byte request. RspLen is floored at 2 to match that response size
// exactly; Decode then truncates to the n bytes actually requested rather
// than assuming anything about byte 1 when n == 1.
func BulkRead8(addr uint32, n int, apNum int) CDB[[]byte] {
	rspLen := n
	if rspLen < 2 {
		rspLen = 2
	}
	var cmd [16]byte
	cmd[0] = cmdDebug
	cmd[1] = dbgReadMem8
	binary.LittleEndian.PutUint32(cmd[2:6], addr)
	binary.LittleEndian.PutUint32(cmd[6:10], uint32(n))
	cmd[10] = byte(apNum)
	return CDB[[]byte]{
		Bytes:  cmd,
		Flags:  HasDataInPhase,
		RspLen: rspLen,
		Decode: func(rsp []byte) ([]byte, error) {
			out := make([]byte, n)
			copy(out, rsp[:n])
			return out, nil
		},
	}
}

func BulkRead16(addr uint32, n int, apNum int) CDB[[]byte] {
	return bulkReadCDB(dbgApiV2ReadMem16, addr, n, apNum, 2)
}

func BulkRead32(addr uint32, n int, apNum int) CDB[[]byte] {
	return bulkReadCDB(dbgReadMem32, addr, n, apNum, 4)
}

// bulkWriteCDB builds one of BulkWrite8/16/32: the command phase carries
// address/count/AP, the data-out phase carries the payload, and the probe
// reports completion via the status phase (spec.md §4.1 item 4).
func bulkWriteCDB(opcode byte, data []byte, addr uint32, apNum int, n int) CDB[struct{}] {
	var cmd [16]byte
	cmd[0] = cmdDebug
	cmd[1] = opcode
	binary.LittleEndian.PutUint32(cmd[2:6], addr)
	binary.LittleEndian.PutUint32(cmd[6:10], uint32(n))
	cmd[10] = byte(apNum)
	return CDB[struct{}]{
		Bytes:   cmd,
		Flags:   HasDataOutPhase | HasStatusPhase,
		DataOut: data,
	}
}

func BulkWrite8(data []byte, addr uint32, apNum int) CDB[struct{}] {
	return bulkWriteCDB(dbgWriteMem8, data, addr, apNum, len(data))
}

func BulkWrite16(data []byte, addr uint32, apNum int) CDB[struct{}] {
	return bulkWriteCDB(dbgApiV2WrMem16, data, addr, apNum, len(data)/2)
}

func BulkWrite32(data []byte, addr uint32, apNum int) CDB[struct{}] {
	return bulkWriteCDB(dbgWriteMem32, data, addr, apNum, len(data)/4)
}

// Read32 reads a single 32-bit aligned word (stlink.py's read_32). The
// 4-byte response is the word itself; it carries no status byte and no
// status phase follows, so a failed transfer is not detected here.
func Read32(addr uint32, apNum int) CDB[uint32] {
	var cmd [16]byte
	cmd[0] = cmdDebug
	cmd[1] = dbgReadMem32
	binary.LittleEndian.PutUint32(cmd[2:6], addr)
	cmd[10] = byte(apNum)
	return CDB[uint32]{
		Bytes:  cmd,
		Flags:  HasDataInPhase,
		RspLen: 4,
		Decode: func(rsp []byte) (uint32, error) {
			return binary.LittleEndian.Uint32(rsp[0:4]), nil
		},
	}
}

// Write32 writes a single 32-bit aligned word (stlink.py's write_32).
func Write32(v, addr uint32, apNum int) CDB[struct{}] {
	var cmd [16]byte
	cmd[0] = cmdDebug
	cmd[1] = dbgWriteMem32
	binary.LittleEndian.PutUint32(cmd[2:6], addr)
	binary.LittleEndian.PutUint32(cmd[6:10], v)
	cmd[10] = byte(apNum)
	return CDB[struct{}]{
		Bytes:  cmd,
		Flags:  HasDataInPhase | HasEmbeddedStatus,
		RspLen: 2,
		Decode: func(rsp []byte) (struct{}, error) { return struct{}{}, nil },
	}
}

// ReadAPReg/WriteAPReg drive an explicit AP register access, used by the
// accessport package when offload to the probe is unsafe (spec.md §4.4).
func ReadAPReg(apsel byte, addr uint32) CDB[uint32] {
	var cmd [16]byte
	cmd[0] = cmdDebug
	cmd[1] = dbgApiV2ReadAP
	cmd[2] = apsel
	binary.LittleEndian.PutUint32(cmd[3:7], addr)
	return CDB[uint32]{
		Bytes:  cmd,
		Flags:  HasDataInPhase | HasEmbeddedStatus,
		RspLen: 8,
		Decode: func(rsp []byte) (uint32, error) {
			return binary.LittleEndian.Uint32(rsp[4:8]), nil
		},
	}
}

func WriteAPReg(apsel byte, addr, value uint32) CDB[struct{}] {
	var cmd [16]byte
	cmd[0] = cmdDebug
	cmd[1] = dbgApiV2WriteAP
	cmd[2] = apsel
	binary.LittleEndian.PutUint32(cmd[3:7], addr)
	binary.LittleEndian.PutUint32(cmd[7:11], value)
	return CDB[struct{}]{
		Bytes:  cmd,
		Flags:  HasDataInPhase | HasEmbeddedStatus,
		RspLen: 2,
		Decode: func(rsp []byte) (struct{}, error) { return struct{}{}, nil },
	}
}

// OpenAP prepares an AP for use, required before any register access on
// newer firmware (stlink.py's open_ap, gated on FEATURE_OPEN_AP).
func OpenAP(apsel byte) CDB[struct{}] {
	return CDB[struct{}]{
		Bytes:  cdb16(cmdDebug, dbgApiV2OpenAP, apsel),
		Flags:  HasDataInPhase | HasEmbeddedStatus,
		RspLen: 2,
		Decode: func(rsp []byte) (struct{}, error) { return struct{}{}, nil },
	}
}

// SetSRST drives or releases the target's reset line.
func SetSRST(assert bool) CDB[struct{}] {
	v := byte(0)
	if assert {
		v = 1
	}
	return CDB[struct{}]{
		Bytes:  cdb16(cmdDebug, dbgApiV2SetSRST, v),
		Flags:  HasDataInPhase | HasEmbeddedStatus,
		RspLen: 2,
		Decode: func(rsp []byte) (struct{}, error) { return struct{}{}, nil },
	}
}

// VoltageSample is the raw ADC pair ReadVoltage returns; GetVoltage (in
// voltage.go) converts it to volts.
type VoltageSample struct {
	VrefADC, TargetADC uint32
}

// ReadVoltage reads the target supply voltage ADC pair (spec.md §6.2).
func ReadVoltage() CDB[VoltageSample] {
	return CDB[VoltageSample]{
		Bytes:  cdb16(cmdGetTargetVoltage),
		Flags:  HasDataInPhase,
		RspLen: 8,
		Decode: func(rsp []byte) (VoltageSample, error) {
			return VoltageSample{
				VrefADC:   binary.LittleEndian.Uint32(rsp[0:4]),
				TargetADC: binary.LittleEndian.Uint32(rsp[4:8]),
			}, nil
		},
	}
}

// LastXFERStatus12 is the V3 "last transfer status" query used for the
// status phase of CDBs without an embedded status byte (spec.md §4.1 item
// 4). It is not routed through Exec like the other commands because its
// result (a plain status byte) is consumed internally by the transport.
func LastXFERStatus12() CDB[byte] {
	return CDB[byte]{
		Bytes:  cdb16(cmdDebug, lastXferStatus12),
		Flags:  HasDataInPhase,
		RspLen: 12,
		Decode: func(rsp []byte) (byte, error) { return rsp[0], nil },
	}
}
