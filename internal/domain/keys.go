package domain

// KeyPrefix namespaces every Redis key owned by scopedex.
const KeyPrefix = "scopedex:"
