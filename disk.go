package memocache

import (
	"context"
	"errors"
	"fmt"

	pr "github.com/unkn0wn-root/memocache/provider"
)

var errFormatUnset = errors.New("storage_format is not registered")

// diskStore persists one artifact per cache name in the name's declared
// storage format. Every save is a full overwrite.
type diskStore struct {
	provider pr.Provider
	props    *propertyStore
	maxBytes int
	log      Logger
}

func artifactName(name string, f Format) string {
	return "cache." + name + "." + f.Ext()
}

func (d *diskStore) format(op, name string) (Format, error) {
	f, ok := d.props.storageFormat(name)
	if !ok {
		return "", &ConfigurationError{Op: op, Name: name, Err: errFormatUnset}
	}
	return f, nil
}

// load reads name's artifact, creating an empty one first if absent.
func (d *diskStore) load(ctx context.Context, name string) (Storage, error) {
	f, err := d.format("load", name)
	if err != nil {
		return nil, err
	}
	cd, err := storageCodec(f, d.maxBytes)
	if err != nil {
		return nil, &ConfigurationError{Op: "load", Name: name, Err: err}
	}
	art := artifactName(name, f)

	raw, ok, err := d.provider.Get(ctx, art)
	if err != nil {
		return nil, fmt.Errorf("memocache: read %s: %w", art, err)
	}
	if !ok {
		if err := d.save(ctx, name, Storage{}); err != nil {
			return nil, err
		}
		d.log.Debug("created empty artifact", cacheFields(name).With("artifact", art))
		return Storage{}, nil
	}

	data, err := cd.Decode(raw)
	if err != nil {
		return nil, &EncodingError{Name: name, Format: f, Op: "decode", Err: err}
	}
	if data == nil {
		data = Storage{}
	}
	return data, nil
}

func (d *diskStore) save(ctx context.Context, name string, data Storage) error {
	f, err := d.format("save", name)
	if err != nil {
		return err
	}
	cd, err := storageCodec(f, d.maxBytes)
	if err != nil {
		return &ConfigurationError{Op: "save", Name: name, Err: err}
	}
	b, err := cd.Encode(data)
	if err != nil {
		return &EncodingError{Name: name, Format: f, Op: "encode", Err: err}
	}
	art := artifactName(name, f)
	if err := d.provider.Set(ctx, art, b); err != nil {
		return fmt.Errorf("memocache: write %s: %w", art, err)
	}
	return nil
}

func (d *diskStore) exists(ctx context.Context, name string) (bool, error) {
	f, ok := d.props.storageFormat(name)
	if !ok {
		return false, nil
	}
	return d.provider.Exists(ctx, artifactName(name, f))
}

// delete removes name's artifact. Deleting an absent artifact is an error.
func (d *diskStore) delete(ctx context.Context, name string) error {
	f, err := d.format("delete", name)
	if err != nil {
		return err
	}
	art := artifactName(name, f)
	existed, err := d.provider.Del(ctx, art)
	if err != nil {
		return fmt.Errorf("memocache: delete %s: %w", art, err)
	}
	if !existed {
		return &MissingArtifactError{Artifact: art}
	}
	return nil
}
