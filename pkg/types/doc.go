/*
Package types defines the data model shared by every remotefs component: the
attribute snapshot of a remote entry, the sparse attribute update sent back to
the server, and the JSON wire codec that converts between the two.

# Data Model

	inode handle ──(gateway: resolve-inode)──▶ path ──(gateway: metadata)──▶ Attributes

The kernel owns inode handles. RootInode (1) is the only handle with a fixed
meaning and always maps to RootPath ("/"). Every other mapping is learned per
request from the remote metadata service and never retained.

Attributes:
An immutable snapshot of one entry at the moment it was fetched. It carries the
entry kind, size, allocated blocks, the four POSIX timestamps, permission bits,
link count, ownership, preferred block size and the BSD flags word.

AttrUpdate:
A sparse update. Each field is a pointer so that an unset field is encoded as
JSON null and never confused with an explicit zero.

# Wire Format

The metadata service speaks JSON:

	{
	  "ino": 2, "size": 12, "blocks": 1,
	  "atime": 1700000000, "mtime": 1700000000, "ctime": 1700000000,
	  "crtime": 1700000000,
	  "file_type": "RegularFile", "permissions": 420,
	  "nlink": 1, "uid": 1000, "gid": 1000, "blksize": 4096,
	  "flags": 0
	}

Timestamps are whole seconds since the Unix epoch. crtime and flags are
optional and default to ctime and 0.

# Interfaces

MetadataService is the contract the resolver and the request handler depend
on; internal/gateway provides the HTTP implementation. MetricsCollector lets
those components report operation outcomes without importing prometheus.
*/
package types
