package pkgset

import "testing"

func TestAddKeepsGreatest(t *testing.T) {
	s := New[string]()
	s.Add(Entry[string]{Name: "foo", Arch: "x86_64", Version: "1.0", Release: "1", Value: "a"})
	s.Add(Entry[string]{Name: "foo", Arch: "x86_64", Version: "1.0", Release: "2", Value: "b"})
	s.Add(Entry[string]{Name: "foo", Arch: "x86_64", Version: "0.9", Release: "9", Value: "c"})

	vs := s.Values()
	if len(vs) != 1 {
		t.Fatalf("got %d entries, want 1", len(vs))
	}
	if vs[0].Value != "b" {
		t.Fatalf("got survivor %q, want %q", vs[0].Value, "b")
	}
}

func TestAddDistinguishesArch(t *testing.T) {
	s := New[string]()
	s.Add(Entry[string]{Name: "foo", Arch: "x86_64", Version: "1.0", Release: "1", Value: "64"})
	s.Add(Entry[string]{Name: "foo", Arch: "i686", Version: "1.0", Release: "1", Value: "32"})

	if s.Len() != 2 {
		t.Fatalf("got %d entries, want 2", s.Len())
	}
}

func TestValuesOrderIsFirstSeen(t *testing.T) {
	s := New[string]()
	s.Add(Entry[string]{Name: "b", Arch: "noarch", Version: "1", Release: "1", Value: "b"})
	s.Add(Entry[string]{Name: "a", Arch: "noarch", Version: "1", Release: "1", Value: "a"})
	s.Add(Entry[string]{Name: "b", Arch: "noarch", Version: "2", Release: "1", Value: "b2"})

	vs := s.Values()
	if len(vs) != 2 || vs[0].Value != "b2" || vs[1].Value != "a" {
		t.Fatalf("got %+v", vs)
	}
}
