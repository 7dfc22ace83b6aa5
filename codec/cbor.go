package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes documents with Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys and smallest integer encoding.
var CBOR Codec = newCBORCodec()

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	// Nested mappings decode as map[string]any rather than the CBOR default
	// map[interface{}]interface{}, matching the other codecs.
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}

	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string { return "cbor" }

func (c cborCodec) Marshal(doc map[string]any) ([]byte, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	data, err := c.enc.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return data, nil
}

func (c cborCodec) Unmarshal(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := c.dec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cbor decode: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}
