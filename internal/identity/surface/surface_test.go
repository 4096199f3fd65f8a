package surface

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() Profile {
	return Profile{
		Platform:     Platform{Version: 28},
		Capabilities: []Capability{CapReadPhoneState},
		Fields: map[string]string{
			FieldBrand: "google",
			FieldModel: "Pixel 3",
		},
		Operations: map[string][]string{
			OpGetImei:        {"356938035643809", "356938035643817"},
			OpGetLine1Number: {"+15550100"},
		},
		Hardened: []string{FieldFingerprint, OpGetSubscriberID},
	}
}

func TestHostFields(t *testing.T) {
	h := NewHost(testProfile())

	t.Run("profile values and catalogue defaults", func(t *testing.T) {
		v, err := h.ReadField(FieldBrand)
		require.NoError(t, err)
		assert.Equal(t, "google", v)

		v, err = h.ReadField(FieldBoard)
		require.NoError(t, err)
		assert.Equal(t, UnknownValue, v)
	})

	t.Run("write replaces the value", func(t *testing.T) {
		require.NoError(t, h.WriteField(FieldModel, "X1"))
		v, err := h.ReadField(FieldModel)
		require.NoError(t, err)
		assert.Equal(t, "X1", v)
	})

	t.Run("hardened field rejects writes", func(t *testing.T) {
		err := h.WriteField(FieldFingerprint, "x")
		assert.True(t, errors.Is(err, ErrHardened))
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := h.ReadField("NOPE")
		assert.True(t, errors.Is(err, ErrNoSuchSurface))
		assert.True(t, errors.Is(h.WriteField("NOPE", "x"), ErrNoSuchSurface))
	})
}

func TestHostOperations(t *testing.T) {
	t.Run("overloads resolve by arity and slot", func(t *testing.T) {
		h := NewHost(testProfile())
		v, err := h.Invoke(OpGetImei)
		require.NoError(t, err)
		assert.Equal(t, "356938035643809", v)

		v, err = h.Invoke(OpGetImei, 1)
		require.NoError(t, err)
		assert.Equal(t, "356938035643817", v)

		_, err = h.Invoke(OpGetImei, 2)
		assert.True(t, errors.Is(err, ErrSlotOutOfRange))

		_, err = h.Invoke(OpGetLine1Number, 0)
		assert.True(t, errors.Is(err, ErrNoSuchSurface), "getLine1Number has no slot overload")
	})

	t.Run("post hooks replace results and errors", func(t *testing.T) {
		h := NewHost(testProfile())
		require.NoError(t, h.HookAfter(OpGetImei, 1, func(c Call) (string, error) {
			assert.Equal(t, OpGetImei, c.Name)
			return "override", nil
		}))

		v, err := h.Invoke(OpGetImei, 7)
		require.NoError(t, err)
		assert.Equal(t, "override", v)

		v, err = h.Invoke(OpGetImei)
		require.NoError(t, err)
		assert.Equal(t, "356938035643809", v, "hooks are per overload")
	})

	t.Run("hooks chain in registration order", func(t *testing.T) {
		h := NewHost(testProfile())
		require.NoError(t, h.HookAfter(OpGetLine1Number, 0, func(c Call) (string, error) {
			return c.Result + "-a", nil
		}))
		require.NoError(t, h.HookAfter(OpGetLine1Number, 0, func(c Call) (string, error) {
			return c.Result + "-b", nil
		}))
		v, err := h.Invoke(OpGetLine1Number)
		require.NoError(t, err)
		assert.Equal(t, "+15550100-a-b", v)
	})

	t.Run("hardened operation rejects hooks", func(t *testing.T) {
		h := NewHost(testProfile())
		err := h.HookAfter(OpGetSubscriberID, 0, func(c Call) (string, error) { return "x", nil })
		assert.True(t, errors.Is(err, ErrHardened))
	})

	t.Run("capabilities are sorted", func(t *testing.T) {
		p := testProfile()
		p.Capabilities = []Capability{"B", "A"}
		assert.Equal(t, []Capability{"A", "B"}, NewHost(p).Granted())
	})
}

func TestAccessors(t *testing.T) {
	h := NewHost(testProfile())

	t.Run("field accessor", func(t *testing.T) {
		acc, err := AccessorFor(KindField)
		require.NoError(t, err)
		require.NoError(t, acc.Bind(h, Field(FieldDevice), "blueline"))
		v, err := h.Read(Field(FieldDevice))
		require.NoError(t, err)
		assert.Equal(t, "blueline", v)
	})

	t.Run("operation accessor reads slot zero of the indexed overload", func(t *testing.T) {
		v, err := h.Read(Op(OpGetImei, 1))
		require.NoError(t, err)
		assert.Equal(t, "356938035643809", v)

		acc, err := AccessorFor(KindOperation)
		require.NoError(t, err)
		require.NoError(t, acc.Bind(h, Op(OpGetImei, 1), "123"))
		v, err = h.Invoke(OpGetImei, 1)
		require.NoError(t, err)
		assert.Equal(t, "123", v)
	})

	t.Run("binding swallows the genuine failure", func(t *testing.T) {
		fresh := NewHost(testProfile())
		_, err := fresh.Invoke(OpGetImei, 9)
		require.True(t, errors.Is(err, ErrSlotOutOfRange))

		acc, err := AccessorFor(KindOperation)
		require.NoError(t, err)
		require.NoError(t, acc.Bind(fresh, Op(OpGetImei, 1), "dev"))
		v, err := fresh.Invoke(OpGetImei, 9)
		require.NoError(t, err)
		assert.Equal(t, "dev", v)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := AccessorFor(Kind(9))
		assert.Error(t, err)
	})
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "BRAND", Field(FieldBrand).String())
	assert.Equal(t, "getImei()", Op(OpGetImei, 0).String())
	assert.Equal(t, "getImei(slot)", Op(OpGetImei, 1).String())

	k, err := ParseKind("operation")
	require.NoError(t, err)
	assert.Equal(t, KindOperation, k)
	_, err = ParseKind("bogus")
	assert.Error(t, err)
}

func TestParseProfile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := ParseProfile([]byte(`
platform:
  version: 27
capabilities: [READ_PHONE_STATE]
fields:
  BRAND: google
operations:
  getImei: ["1", "2"]
hardened: [BOARD]
`))
		require.NoError(t, err)
		assert.Equal(t, 27, p.Platform.Version)
		assert.Equal(t, []Capability{CapReadPhoneState}, p.Capabilities)
		assert.Equal(t, "google", p.Fields[FieldBrand])
		assert.Equal(t, []string{"1", "2"}, p.Operations[OpGetImei])
		assert.Equal(t, []string{FieldBoard}, p.Hardened)
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := ParseProfile([]byte("platform:\n  version: 27\nbogus: 1\n"))
		assert.Error(t, err)
	})

	t.Run("requires a platform version", func(t *testing.T) {
		_, err := ParseProfile([]byte("fields:\n  BRAND: x\n"))
		assert.Error(t, err)
	})

	t.Run("load from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "host.yaml")
		require.NoError(t, os.WriteFile(path, []byte("platform:\n  version: 30\n"), 0o600))
		p, err := LoadProfile(path)
		require.NoError(t, err)
		assert.Equal(t, 30, p.Platform.Version)

		_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestFillFromDMI(t *testing.T) {
	root := t.TempDir()
	write := func(name, value string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(value+"\n"), 0o600))
	}
	write("sys_vendor", "LENOVO")
	write("product_name", "20XW")
	write("board_name", "20XWCTO1WW")
	write("product_serial", "PF2ABCDE")

	p := FillFromDMI(Profile{
		Platform: Platform{Version: 27},
		Fields:   map[string]string{FieldBrand: "keep"},
	}, root)

	assert.Equal(t, "keep", p.Fields[FieldBrand])
	assert.Equal(t, "LENOVO", p.Fields[FieldManufacturer])
	assert.Equal(t, "20XW", p.Fields[FieldModel])
	assert.Equal(t, "20XWCTO1WW", p.Fields[FieldBoard])
	assert.Equal(t, "PF2ABCDE", p.Fields[FieldSerial])
	assert.Equal(t, []string{"PF2ABCDE"}, p.Operations[OpGetSerial])
	assert.Empty(t, p.Fields[FieldBootloader])
}
