package soni

// Version is the library version, stamped by the release pipeline.
const Version = "0.1.0"
