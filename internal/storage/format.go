package storage

import "bytes"

// Image formats recognized by SniffFormat.
const (
	FormatQCOW2 = "qcow2"
	FormatRaw   = "raw"
)

var (
	// qcow2Magic is "QFI" followed by 0xfb at offset 0.
	// Reference: https://www.qemu.org/docs/master/interop/qcow2.html
	qcow2Magic = []byte{0x51, 0x46, 0x49, 0xfb}

	// mbrSignature ends the first 512-byte sector of MBR and GPT (protective
	// MBR) disks.
	mbrSignature = []byte{0x55, 0xaa}
)

// sniffLen is how many leading bytes SniffFormat needs.
const sniffLen = 512

// SniffFormat guesses the image format from the first bytes of an image:
// qcow2 by its magic, raw by a boot sector signature at offset 510. ok is
// false when neither matches or head is too short.
func SniffFormat(head []byte) (format string, ok bool) {
	if len(head) >= len(qcow2Magic) && bytes.Equal(head[:len(qcow2Magic)], qcow2Magic) {
		return FormatQCOW2, true
	}
	if len(head) >= sniffLen && bytes.Equal(head[510:512], mbrSignature) {
		return FormatRaw, true
	}
	return "", false
}
