package seccomp

import (
	"syscall"
	"testing"

	iradix "github.com/hashicorp/go-immutable-radix"
	libseccomp "github.com/seccomp/libseccomp-golang"
	"github.com/stretchr/testify/require"
)

func TestDispatcherUnknownSyscallReturnsEnosys(t *testing.T) {
	d := &Dispatcher{reg: &registry{tree: iradix.New()}}

	resp := d.Handle(Notifier{}, &libseccomp.ScmpNotifReq{
		Id:   1,
		Pid:  100,
		Data: libseccomp.ScmpNotifData{Syscall: libseccomp.ScmpSyscall(12345)},
	})

	require.Equal(t, int32(syscall.ENOSYS), resp.Error)
}
