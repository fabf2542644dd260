package config

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/magiconair/properties"
	"github.com/spf13/viper"
)

// propertiesCodec reads and writes Java style properties files for viper.
// Keys stay flat: "checkout.ListOrders.invocations" is one key, not a path.
type propertiesCodec struct{}

// Decode implements viper.Decoder.
func (propertiesCodec) Decode(b []byte, v map[string]any) error {
	p, err := properties.Load(b, properties.UTF8)
	if err != nil {
		return fmt.Errorf("failed to parse properties: %w", err)
	}
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		v[key] = value
	}
	return nil
}

// Encode implements viper.Encoder.
func (propertiesCodec) Encode(v map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	p := properties.NewProperties()
	for _, key := range keys {
		if _, _, err := p.Set(key, fmt.Sprint(v[key])); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := p.Write(&buf, properties.UTF8); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// overrideCodecs returns viper's default codecs plus properties support.
func overrideCodecs() *viper.DefaultCodecRegistry {
	reg := viper.NewCodecRegistry()
	for _, format := range []string{"properties", "props", "prop"} {
		_ = reg.RegisterCodec(format, propertiesCodec{})
	}
	return reg
}
