// Package dynlibtest provides helpers for testing code which inspects
// shared libraries.
package dynlibtest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
)

func align8(buf *bytes.Buffer) {
	for buf.Len()%8 != 0 {
		buf.WriteByte(0)
	}
}

// WriteSharedObject writes a minimal ELF64 shared object whose dynamic
// section lists needed as DT_NEEDED entries. It is enough for
// dynlib.ListDependencies, but cannot be loaded.
func WriteSharedObject(path string, needed []string) error {
	var dynstr bytes.Buffer
	dynstr.WriteByte(0)
	offsets := make([]uint64, 0, len(needed))
	for _, name := range needed {
		offsets = append(offsets, uint64(dynstr.Len()))
		dynstr.WriteString(name)
		dynstr.WriteByte(0)
	}

	var dynamic bytes.Buffer
	for _, off := range offsets {
		if err := binary.Write(&dynamic, binary.LittleEndian, elf.Dyn64{Tag: int64(elf.DT_NEEDED), Val: off}); err != nil {
			return err
		}
	}
	if err := binary.Write(&dynamic, binary.LittleEndian, elf.Dyn64{Tag: int64(elf.DT_NULL)}); err != nil {
		return err
	}

	shstrtab := []byte("\x00.dynstr\x00.dynamic\x00.shstrtab\x00")
	const (
		nameDynstr   = 1
		nameDynamic  = 9
		nameShstrtab = 18
	)

	var body bytes.Buffer
	body.Write(make([]byte, 64)) // the header is written last

	dynstrOff := uint64(body.Len())
	body.Write(dynstr.Bytes())
	align8(&body)

	dynamicOff := uint64(body.Len())
	body.Write(dynamic.Bytes())
	align8(&body)

	shstrtabOff := uint64(body.Len())
	body.Write(shstrtab)
	align8(&body)

	shOff := uint64(body.Len())
	sections := []elf.Section64{
		{},
		{
			Name:      nameDynstr,
			Type:      uint32(elf.SHT_STRTAB),
			Off:       dynstrOff,
			Size:      uint64(dynstr.Len()),
			Addralign: 1,
		},
		{
			Name:      nameDynamic,
			Type:      uint32(elf.SHT_DYNAMIC),
			Off:       dynamicOff,
			Size:      uint64(dynamic.Len()),
			Link:      1,
			Addralign: 8,
			Entsize:   16,
		},
		{
			Name:      nameShstrtab,
			Type:      uint32(elf.SHT_STRTAB),
			Off:       shstrtabOff,
			Size:      uint64(len(shstrtab)),
			Addralign: 1,
		},
	}
	for _, s := range sections {
		if err := binary.Write(&body, binary.LittleEndian, s); err != nil {
			return err
		}
	}

	hdr := elf.Header64{
		Type:      uint16(elf.ET_DYN),
		Machine:   uint16(elf.EM_AARCH64),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     shOff,
		Ehsize:    64,
		Shentsize: 64,
		Shnum:     uint16(len(sections)),
		Shstrndx:  3,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var hdrBuf bytes.Buffer
	if err := binary.Write(&hdrBuf, binary.LittleEndian, hdr); err != nil {
		return err
	}

	out := body.Bytes()
	copy(out, hdrBuf.Bytes())
	return os.WriteFile(path, out, 0o644)
}
