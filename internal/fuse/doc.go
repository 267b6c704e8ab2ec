/*
Package fuse serves the remote metadata service as a FUSE filesystem.

The package supports two FUSE bindings through build constraints:

	go build ./...                 go-fuse raw protocol (Linux, macOS)
	go build -tags cgofuse ./...   cgofuse path protocol (macOS, Windows via WinFsp)

# Architecture Overview

	┌─────────────────────────────────────────────┐
	│          Kernel VFS / FUSE driver           │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│   rawFS (go-fuse)     │   CgoFuseFS (cgofuse)│  ← binding adapters
	└─────────────────────────────────────────────┘
	                      │  Request
	┌─────────────────────────────────────────────┐
	│            Handler.Dispatch                 │  ← this package
	└─────────────────────────────────────────────┘
	          │                         │
	┌───────────────────┐   ┌───────────────────────┐
	│ resolver.Resolver │   │ gateway.Client (HTTP) │
	└───────────────────┘   └───────────────────────┘

Every kernel callback becomes one value of the Request union and goes
through a single type switch. Callbacks without an implementation become an
UnsupportedRequest and are answered with ENOSYS and a warning, without any
network traffic.

# Supported Operations

	Lookup     resolve parent, fetch attributes          ENAMETOOLONG, EINVAL, ENOENT
	GetAttr    resolve inode, fetch attributes           ENOENT
	SetAttr    resolve inode, PATCH sparse update        ENOENT
	Forget     no-op, the remote service owns lifetime
	Open(Dir)  handle 0, no flags
	Release    acknowledged
	StatFS     fixed report, 512-byte blocks, 255-byte names
	Link       refused                                   EPERM

Entries and attributes are returned with a one second cache lifetime and
generation zero. Names longer than 255 bytes and names that are not valid
UTF-8 are rejected before any remote call.

# Mounting

MountManager creates the mount point when missing, takes an exclusive lock
file for it, and probes the metadata service before creating the FUSE
server. A failed probe aborts the mount with an error wrapping syscall.EIO:

	handler := fuse.NewHandler(client, collector, nil)
	mgr := fuse.NewPlatformMountManager(handler, &fuse.MountConfig{
		MountPoint: "/tmp/remote-fs",
		FSName:     "remote-fs",
	}, nil)
	if err := mgr.Mount(ctx); err != nil {
		return err
	}
	defer mgr.Unmount()
	mgr.Wait()

Unmount falls back to a lazy detach when the kernel reports the mount busy.
*/
package fuse
