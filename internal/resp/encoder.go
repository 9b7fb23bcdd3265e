package resp

import (
	"bufio"
	"io"
	"strconv"
)

// Encoder serializes Value responses onto an output stream using the
// framing table of the protocol: simple string, error, bulk string
// (plus its null form), and array of bulk strings.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder wraps w in a buffered Encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// Write serializes v and flushes it to the underlying stream.
func (e *Encoder) Write(v Value) error {
	if err := e.encode(v); err != nil {
		return err
	}
	return e.w.Flush()
}

func (e *Encoder) encode(v Value) error {
	switch v.Type {
	case TypeSimpleString:
		return e.writeLine('+', v.String)

	case TypeError:
		return e.writeLine('-', v.String)

	case TypeBulkString:
		if v.IsNull {
			_, err := e.w.WriteString("$-1\r\n")
			return err
		}
		if err := e.writeHeader('$', int64(len(v.String))); err != nil {
			return err
		}
		if _, err := e.w.Write(v.String); err != nil {
			return err
		}
		_, err := e.w.WriteString("\r\n")
		return err

	case TypeArray:
		if err := e.writeHeader('*', int64(len(v.Array))); err != nil {
			return err
		}
		for _, el := range v.Array {
			if err := e.encode(el); err != nil {
				return err
			}
		}
		return nil

	default:
		return nil
	}
}

func (e *Encoder) writeHeader(prefix byte, n int64) error {
	if err := e.w.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := e.w.WriteString(strconv.FormatInt(n, 10)); err != nil {
		return err
	}
	_, err := e.w.WriteString("\r\n")
	return err
}

func (e *Encoder) writeLine(prefix byte, b []byte) error {
	if err := e.w.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	_, err := e.w.WriteString("\r\n")
	return err
}
