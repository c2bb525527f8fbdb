package element

import "testing"

func TestIPMIRender(t *testing.T) {
	i := NewIPMI("127.0.0.1", 9100)
	got := renderOne(t, i)
	want := "-chardev socket,id=ipmi0,host=127.0.0.1,port=9100,reconnect=10 " +
		"-device ipmi-bmc-extern,chardev=ipmi0,id=bmc0 -device isa-ipmi-kcs,bmc=bmc0"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestIPMIInvalidPort(t *testing.T) {
	i := NewIPMI("127.0.0.1", 0)
	if err := i.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := i.Precheck(); err == nil {
		t.Fatal("expected ArgsIncorrect for port <= 0")
	}
}
