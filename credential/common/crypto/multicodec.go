package crypto

import (
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
)

// Multicodec codes of the supported public key types.
const (
	CodecEd25519Pub   uint64 = 0xed
	CodecSecp256k1Pub uint64 = 0xe7
	CodecP256Pub      uint64 = 0x1200
)

// EncodeMultibase encodes data as base58btc multibase ("z...").
func EncodeMultibase(data []byte) (string, error) {
	return multibase.Encode(multibase.Base58BTC, data)
}

// DecodeMultibase decodes a multibase string of any supported base.
func DecodeMultibase(s string) ([]byte, error) {
	_, data, err := multibase.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid multibase value: %w", err)
	}
	return data, nil
}

// EncodeMulticodecKey encodes a public key as multibase(multicodec || key).
func EncodeMulticodecKey(pub gocrypto.PublicKey) (string, error) {
	var codec uint64
	var raw []byte
	switch k := pub.(type) {
	case ed25519.PublicKey:
		codec, raw = CodecEd25519Pub, k
	case *ecdsa.PublicKey:
		switch {
		case IsSecp256k1(k):
			codec, raw = CodecSecp256k1Pub, ethcrypto.CompressPubkey(k)
		case k.Curve == elliptic.P256():
			codec, raw = CodecP256Pub, elliptic.MarshalCompressed(k.Curve, k.X, k.Y)
		default:
			return "", fmt.Errorf("unsupported curve %s", k.Curve.Params().Name)
		}
	default:
		return "", fmt.Errorf("unsupported public key type %T", pub)
	}
	return EncodeMultibase(append(varint.ToUvarint(codec), raw...))
}

// DecodeMulticodecKey decodes multibase(multicodec || key) into a public key.
func DecodeMulticodecKey(s string) (gocrypto.PublicKey, error) {
	data, err := DecodeMultibase(s)
	if err != nil {
		return nil, err
	}
	codec, n, err := varint.FromUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("invalid multicodec prefix: %w", err)
	}
	return PublicKeyFromCodec(codec, data[n:])
}

// PublicKeyFromCodec builds a public key from raw bytes of the given codec.
func PublicKeyFromCodec(codec uint64, raw []byte) (gocrypto.PublicKey, error) {
	switch codec {
	case CodecEd25519Pub:
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("ed25519 public key must be %d bytes", ed25519.PublicKeySize)
		}
		return ed25519.PublicKey(raw), nil
	case CodecSecp256k1Pub:
		return ParseSecp256k1PublicKey(raw)
	case CodecP256Pub:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), raw)
		if x == nil {
			return nil, fmt.Errorf("invalid P-256 public key")
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
	default:
		return nil, fmt.Errorf("unsupported multicodec 0x%x", codec)
	}
}
