// Package middleware provides the HTTP guard chain for access control
// and resource governance.
//
// # Guard ordering
//
// Guards compose as an ordered chain; each either passes control forward
// or terminates the request with one structured failure. The required
// ordering (outer to inner) is:
//
//  1. RequestID / request logging
//  2. AuthMiddleware — attaches the caller identity
//  3. RateLimitMiddleware.PerUserRateLimit — needs the caller for its
//     identifier and limit
//  4. RequireRole / RequireScope
//  5. AccessMiddleware.RequireSessionAccess / RequireProjectAccess
//  6. QuotaMiddleware.EnforceQuota on create routes
//
// Running a caller-dependent guard before AuthMiddleware silently
// downgrades it to the anonymous path.
//
// Failure policy: authentication and authorization guards fail closed
// (an internal failure denies), quota and rate limit guards fail open
// (an internal failure allows). The asymmetry is deliberate:
// infrastructure trouble must never grant access, and must never cause
// an outage for legitimate traffic either.
package middleware
