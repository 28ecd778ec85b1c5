// Package builtins provides the tools registered at startup: sandboxed
// filesystem access, a safe arithmetic calculator, and a data processing
// family covering statistics, transforms, text, encoding, and validation.
//
// Every tool follows the same result convention: domain-level failures come
// back as {"ok": false, "error": ...} documents so the session stays open,
// while a returned Go error marks the invocation itself as failed.
package builtins
