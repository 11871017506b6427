package diag

import "testing"

func TestWriteUint32(t *testing.T) {
	cases := []struct {
		v    uint32
		want string
	}{
		{0, "0000000000"},
		{42, "0000000042"},
		{4294967295, "4294967295"},
	}
	for _, c := range cases {
		var buf [10]byte
		got := string(WriteUint32(&buf, c.v))
		if got != c.want {
			t.Errorf("WriteUint32(%d) = %q, want %q", c.v, got, c.want)
		}
	}
}

type recordingSink struct {
	fatal string
}

func (r *recordingSink) Printf(string, ...any) {}
func (r *recordingSink) Fatal(msg string)       { r.fatal = msg; panic(msg) }

func TestFatalReports(t *testing.T) {
	r := &recordingSink{}
	prev := sink
	SetSink(r)
	defer SetSink(prev)
	defer func() {
		recover()
		if r.fatal != "boom" {
			t.Fatalf("fatal message = %q, want boom", r.fatal)
		}
	}()
	Fatal("boom")
}
