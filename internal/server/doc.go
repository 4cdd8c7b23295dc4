// Package server provides HTTP routing, middleware, and the JSON handlers of the card quiz web service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally. Routes are method-qualified patterns
// ("GET /api/player/{id}"), so a request with the wrong method gets 405 from the mux.
//
// # Handlers
//
//   - [ImportHandler]: video info and audio download proxy, plus multipart bulk import
//   - [PlayerHandler]: resolves a scanned song id to its audio URL
//   - [AuthHandler]: login and logout
//   - [AdminHandler]: stats, song search, deck composition, PDF and QR exports
//
// # Sessions
//
// Login exchanges backend credentials for a gateway session and signs it into an HttpOnly "jwt" cookie
// (HS256, via jwtauth). Admin routes and bulk import verify the cookie and put the gateway session into the
// request context, so one process serves any number of signed-in admins without sharing a session store.
//
// # Errors
//
// Handlers report failures as {"error", "kind", "details"} JSON. [StatusFor] maps the shared sentinel errors
// and import failures to HTTP statuses.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
