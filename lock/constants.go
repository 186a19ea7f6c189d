package lock

// DefaultMaxWaiters is the default maximum number of waiters queued on one path.
const DefaultMaxWaiters = 1024
