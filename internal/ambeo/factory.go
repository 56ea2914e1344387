package ambeo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Product names reported by the device.
const (
	ModelMax  = "AMBEO Soundbar Max"
	ModelPlus = "AMBEO Soundbar Plus"
	ModelMini = "AMBEO Soundbar Mini"
)

// Variant overrides factory model detection.
type Variant string

// Variants.
const (
	VariantAuto     Variant = "auto"
	VariantPopcorn  Variant = "popcorn"
	VariantPlus     Variant = "plus"
	VariantEspresso Variant = "espresso"
)

// ParseVariant accepts a variant name, case-insensitively. The empty
// string is VariantAuto.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "":
		return VariantAuto, nil
	case VariantAuto, VariantPopcorn, VariantPlus, VariantEspresso:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

type constructor func(*Transport) Client

// modelTable maps product names to client constructors.
var modelTable = map[string]constructor{
	ModelMax:  func(t *Transport) Client { return NewEspressoClient(t) },
	ModelPlus: func(t *Transport) Client { return NewPopcornClient(t) },
	ModelMini: func(t *Transport) Client { return NewPopcornClient(t) },
}

var variantTable = map[Variant]constructor{
	VariantPopcorn:  func(t *Transport) Client { return NewPopcornClient(t) },
	VariantPlus:     func(t *Transport) Client { return NewPlusClient(t) },
	VariantEspresso: func(t *Transport) Client { return NewEspressoClient(t) },
}

// SupportedModels lists the product names NewClient recognises.
func SupportedModels() []string {
	return []string{ModelMax, ModelPlus, ModelMini}
}

// Options configures NewClient.
type Options struct {
	Host       string
	Port       int
	HTTPClient *http.Client // shared; may be nil
	Logger     Logger
	Timeout    time.Duration
	Variant    Variant
}

// NewClient probes the device at opts.Host and returns the client for
// its model.
//
// The probe reads the serial number and then the product name. A probe
// that yields no serial returns ErrDeviceUnreachable, which callers
// should retry. An unknown product name returns ErrUnsupportedModel,
// which they should not. The returned client reuses the probe's
// transport and makes no further requests.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	variant, err := ParseVariant(string(opts.Variant))
	if err != nil {
		return nil, err
	}

	t := NewTransport(opts.Host, opts.Port, opts.HTTPClient, opts.Logger, opts.Timeout)
	probe := NewGenericClient(t)
	host, port := t.Endpoint()

	serial, err := probe.GetSerial(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w at %s:%d: %w", ErrDeviceUnreachable, host, port, err)
	}
	if serial == nil || *serial == "" {
		return nil, fmt.Errorf("%w at %s:%d: no serial number", ErrDeviceUnreachable, host, port)
	}

	if variant != VariantAuto {
		t.logger.Info("using configured client variant", "variant", variant, "serial", *serial)
		return variantTable[variant](t), nil
	}

	model, err := probe.GetModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w at %s:%d: %w", ErrDeviceUnreachable, host, port, err)
	}
	if model == nil {
		return nil, fmt.Errorf("%w: device %s reported no model", ErrUnsupportedModel, *serial)
	}

	build, ok := modelTable[*model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, *model)
	}

	client := build(t)
	t.logger.Debug("selected client for model", "model", *model, "family", client.Family(), "serial", *serial)
	return client, nil
}
