// Package thread pins the calling OS thread to a CPU core. Callers must hold
// runtime.LockOSThread for the pin to mean anything.
package thread

/*
   #define _GNU_SOURCE
   #include <sched.h>
   #include <pthread.h>

   int set_cpu_affinity(int core_id) {
       cpu_set_t cpuset;
       CPU_ZERO(&cpuset);
       CPU_SET(core_id, &cpuset);
       return pthread_setaffinity_np(pthread_self(), sizeof(cpu_set_t), &cpuset);
   }
*/
import "C"

import (
	"syscall"

	"github.com/pkg/errors"
)

// SetCPUAffinity binds the current thread to coreID.
func SetCPUAffinity(coreID int) error {
	if coreID < 0 {
		return errors.Errorf("invalid core %d", coreID)
	}
	if rc := C.set_cpu_affinity(C.int(coreID)); rc != 0 {
		return errors.Wrapf(syscall.Errno(rc), "pin thread to core %d", coreID)
	}
	return nil
}

// Pinner returns a hook for the recognition worker's OnStart that pins its
// thread to coreID, or nil when coreID is negative.
func Pinner(coreID int, onError func(error)) func() {
	if coreID < 0 {
		return nil
	}
	return func() {
		if err := SetCPUAffinity(coreID); err != nil && onError != nil {
			onError(err)
		}
	}
}
