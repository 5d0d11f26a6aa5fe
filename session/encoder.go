package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const contextFormatVersionCurrent = 1

// ErrContextCorrupt is returned when a persisted context blob cannot be decoded.
var ErrContextCorrupt = errors.New("session context corrupt")

func writeString(buf *bytes.Buffer, s string, field string) error {
	if len(s) > 0xffff {
		return errors.New(field + " too long")
	}
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	buf.Write(l[:])
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var l [2]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return "", ErrContextCorrupt
	}
	n := binary.BigEndian.Uint16(l[:])
	if n == 0 {
		return "", nil
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", ErrContextCorrupt
	}
	return string(raw), nil
}

// Encode serializes c into the versioned binary wire form used by [Store].
func Encode(c *Context) ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil context")
	}

	var buf bytes.Buffer
	buf.WriteByte(contextFormatVersionCurrent)

	for _, s := range []struct{ value, field string }{
		{c.AttemptID, "attemptID"},
		{c.Identity, "identity"},
		{c.PendingPayload, "pendingPayload"},
		{c.CandidateEmail, "candidateEmail"},
		{c.CandidatePhone, "candidatePhone"},
		{c.CandidatePIN, "candidatePIN"},
		{c.CandidateKey, "candidateKey"},
		{c.Message, "message"},
	} {
		if err := writeString(&buf, s.value, s.field); err != nil {
			return nil, err
		}
	}

	buf.WriteByte(byte(c.Screen))
	buf.WriteByte(byte(c.TargetOnError))
	buf.WriteByte(byte(c.Flow))
	buf.WriteByte(byte(c.Step))
	buf.WriteByte(byte(c.Selected))
	buf.WriteByte(byte(c.FirstChoice))

	var flags byte
	if c.PinDone {
		flags |= 1 << 0
	}
	if c.Enabled {
		flags |= 1 << 1
	}
	if c.Registered {
		flags |= 1 << 2
	}
	if c.Locked {
		flags |= 1 << 3
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, uint32(c.RetryCount)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, c.StartedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, c.SkipMask); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses the versioned binary wire form produced by [Encode].
func Decode(data []byte) (*Context, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrContextCorrupt
	}
	if version != contextFormatVersionCurrent {
		return nil, ErrContextCorrupt
	}

	c := &Context{}

	targets := []*string{
		&c.AttemptID,
		&c.Identity,
		&c.PendingPayload,
		&c.CandidateEmail,
		&c.CandidatePhone,
		&c.CandidatePIN,
		&c.CandidateKey,
		&c.Message,
	}
	for _, t := range targets {
		v, err := readString(reader)
		if err != nil {
			return nil, err
		}
		*t = v
	}

	var enums [6]byte
	if _, err := io.ReadFull(reader, enums[:]); err != nil {
		return nil, ErrContextCorrupt
	}
	c.Screen = Screen(enums[0])
	c.TargetOnError = Screen(enums[1])
	c.Flow = Flow(enums[2])
	c.Step = Step(enums[3])
	c.Selected = Factor(enums[4])
	c.FirstChoice = Factor(enums[5])

	if c.Screen >= screenCount || c.TargetOnError >= screenCount ||
		c.Flow >= flowCount || c.Step >= stepCount ||
		c.Selected >= factorCount || c.FirstChoice >= factorCount {
		return nil, ErrContextCorrupt
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, ErrContextCorrupt
	}
	c.PinDone = flags&(1<<0) != 0
	c.Enabled = flags&(1<<1) != 0
	c.Registered = flags&(1<<2) != 0
	c.Locked = flags&(1<<3) != 0

	var retry uint32
	if err := binary.Read(reader, binary.BigEndian, &retry); err != nil {
		return nil, ErrContextCorrupt
	}
	c.RetryCount = int(retry)
	if err := binary.Read(reader, binary.BigEndian, &c.StartedAt); err != nil {
		return nil, ErrContextCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &c.SkipMask); err != nil {
		return nil, ErrContextCorrupt
	}

	if reader.Len() != 0 {
		return nil, ErrContextCorrupt
	}

	return c, nil
}
