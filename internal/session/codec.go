package session

import (
	"bytes"
	"encoding/json"

	appErr "sandgate/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Codec turns sessions into stored bytes. Decode accepts both plain JSON
// and zstd frames regardless of the compress setting, so a store can be
// switched between modes without migrating data.
type Codec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// NewCodec builds a codec. EncodeAll/DecodeAll are safe for concurrent use.
func NewCodec(compress bool) (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create zstd encoder failed")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create zstd decoder failed")
	}
	return &Codec{compress: compress, enc: enc, dec: dec}, nil
}

func (c *Codec) Encode(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SessionSaveFailed, "encode session %q failed", s.Key)
	}
	if !c.compress {
		return data, nil
	}
	return c.enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (c *Codec) Decode(data []byte) (*Session, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		plain, err := c.dec.DecodeAll(data, nil)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.SessionCorrupted, "decompress session failed")
		}
		data = plain
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, appErr.Wrapf(err, appErr.SessionCorrupted, "decode session failed")
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	return &s, nil
}
