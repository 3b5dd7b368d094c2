package hierarchy

import (
	"fmt"
	"strings"
)

// Sort keys are variable-length base-62 strings that always admit a new key
// strictly between two existing ones, so siblings never need renumbering.
// A key is an integer part (head character encodes its length) followed by
// an optional fraction that never ends in '0'.

const keyDigits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	firstKey        = "a0"
	smallestInteger = "A00000000000000000000000000"
)

// KeyBetween returns a key strictly between a and b. An empty a means no
// lower bound, an empty b no upper bound.
func KeyBetween(a, b string) (string, error) {
	if a != "" {
		if err := validateKey(a); err != nil {
			return "", err
		}
	}
	if b != "" {
		if err := validateKey(b); err != nil {
			return "", err
		}
	}
	if a != "" && b != "" && a >= b {
		return "", fmt.Errorf("sort key %q is not below %q", a, b)
	}

	switch {
	case a == "" && b == "":
		return firstKey, nil
	case a == "":
		ib, err := integerPart(b)
		if err != nil {
			return "", err
		}
		fb := b[len(ib):]
		if ib == smallestInteger {
			m, err := midpoint("", fb, true)
			if err != nil {
				return "", err
			}
			return ib + m, nil
		}
		if ib < b {
			return ib, nil
		}
		res, ok := decrementInteger(ib)
		if !ok {
			return "", fmt.Errorf("cannot decrement sort key %q", b)
		}
		return res, nil
	case b == "":
		ia, err := integerPart(a)
		if err != nil {
			return "", err
		}
		if i, ok := incrementInteger(ia); ok {
			return i, nil
		}
		m, err := midpoint(a[len(ia):], "", false)
		if err != nil {
			return "", err
		}
		return ia + m, nil
	}

	ia, err := integerPart(a)
	if err != nil {
		return "", err
	}
	ib, err := integerPart(b)
	if err != nil {
		return "", err
	}
	fa, fb := a[len(ia):], b[len(ib):]
	if ia == ib {
		m, err := midpoint(fa, fb, true)
		if err != nil {
			return "", err
		}
		return ia + m, nil
	}
	i, ok := incrementInteger(ia)
	if !ok {
		return "", fmt.Errorf("cannot increment sort key %q", a)
	}
	if i < b {
		return i, nil
	}
	m, err := midpoint(fa, "", false)
	if err != nil {
		return "", err
	}
	return ia + m, nil
}

// KeyAfter returns a key strictly greater than prev ("" starts a sequence).
func KeyAfter(prev string) (string, error) {
	return KeyBetween(prev, "")
}

// midpoint returns a fraction strictly between a and b. When hasB is false
// b is unbounded.
func midpoint(a, b string, hasB bool) (string, error) {
	if hasB && a >= b {
		return "", fmt.Errorf("fraction %q is not below %q", a, b)
	}
	if strings.HasSuffix(a, "0") || (hasB && strings.HasSuffix(b, "0")) {
		return "", fmt.Errorf("fraction has trailing zero")
	}
	if hasB {
		n := 0
		for n < len(b) && digitAt(a, n) == b[n] {
			n++
		}
		if n > 0 {
			rest, err := midpoint(tail(a, n), b[n:], true)
			if err != nil {
				return "", err
			}
			return b[:n] + rest, nil
		}
	}

	digitA := 0
	if a != "" {
		digitA = strings.IndexByte(keyDigits, a[0])
	}
	digitB := len(keyDigits)
	if hasB {
		digitB = strings.IndexByte(keyDigits, b[0])
	}
	if digitB-digitA > 1 {
		mid := (digitA + digitB + 1) / 2
		return string(keyDigits[mid]), nil
	}
	if hasB && len(b) > 1 {
		return b[:1], nil
	}
	rest, err := midpoint(tail(a, 1), "", false)
	if err != nil {
		return "", err
	}
	return string(keyDigits[digitA]) + rest, nil
}

// digitAt pads a with '0' past its end.
func digitAt(a string, i int) byte {
	if i < len(a) {
		return a[i]
	}
	return '0'
}

func tail(s string, n int) string {
	if n >= len(s) {
		return ""
	}
	return s[n:]
}

func integerLength(head byte) (int, error) {
	switch {
	case head >= 'a' && head <= 'z':
		return int(head-'a') + 2, nil
	case head >= 'A' && head <= 'Z':
		return int('Z'-head) + 2, nil
	}
	return 0, fmt.Errorf("invalid sort key head %q", head)
}

func integerPart(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty sort key")
	}
	n, err := integerLength(key[0])
	if err != nil {
		return "", err
	}
	if n > len(key) {
		return "", fmt.Errorf("invalid sort key %q", key)
	}
	return key[:n], nil
}

func validateKey(key string) error {
	if key == smallestInteger {
		return fmt.Errorf("invalid sort key %q", key)
	}
	i, err := integerPart(key)
	if err != nil {
		return err
	}
	if strings.HasSuffix(key[len(i):], "0") {
		return fmt.Errorf("invalid sort key %q", key)
	}
	for j := 1; j < len(key); j++ {
		if strings.IndexByte(keyDigits, key[j]) < 0 {
			return fmt.Errorf("invalid sort key %q", key)
		}
	}
	return nil
}

func incrementInteger(x string) (string, bool) {
	head := x[0]
	digs := []byte(x[1:])
	carry := true
	for i := len(digs) - 1; carry && i >= 0; i-- {
		d := strings.IndexByte(keyDigits, digs[i]) + 1
		if d == len(keyDigits) {
			digs[i] = keyDigits[0]
		} else {
			digs[i] = keyDigits[d]
			carry = false
		}
	}
	if !carry {
		return string(head) + string(digs), true
	}
	if head == 'Z' {
		return "a" + string(keyDigits[0]), true
	}
	if head == 'z' {
		return "", false
	}
	h := head + 1
	if h > 'a' {
		digs = append(digs, keyDigits[0])
	} else {
		digs = digs[:len(digs)-1]
	}
	return string(h) + string(digs), true
}

func decrementInteger(x string) (string, bool) {
	head := x[0]
	digs := []byte(x[1:])
	borrow := true
	last := keyDigits[len(keyDigits)-1]
	for i := len(digs) - 1; borrow && i >= 0; i-- {
		d := strings.IndexByte(keyDigits, digs[i]) - 1
		if d == -1 {
			digs[i] = last
		} else {
			digs[i] = keyDigits[d]
			borrow = false
		}
	}
	if !borrow {
		return string(head) + string(digs), true
	}
	if head == 'a' {
		return "Z" + string(last), true
	}
	if head == 'A' {
		return "", false
	}
	h := head - 1
	if h < 'Z' {
		digs = append(digs, last)
	} else {
		digs = digs[:len(digs)-1]
	}
	return string(h) + string(digs), true
}
