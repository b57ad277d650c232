// Package errors defines the application error taxonomy and its HTTP
// representation.
//
// Every failure that crosses a package boundary is classified into a Kind:
// configuration problems, invalid client requests, remote not-found /
// permission / rate-limit signals, and a catch-all upstream kind. The HTTP
// layer maps kinds to status codes and a structured JSON body; detail about
// the underlying cause is logged server-side only.
package errors
