// Package route decides, for one navigation request, whether to render the
// target page or redirect elsewhere.
//
// Routes are classified by a static [Table]. [Authorizer.Check] combines the
// class with a [Subject] built from session claims and returns a
// [Decision]. The check performs no I/O and never mutates its inputs, so it
// is safe to run on every request.
//
// Precedence, highest first:
//
//   - a banned subject is sent to the banned page from anywhere except the
//     banned page itself and sign-out routes;
//   - an authenticated subject on a login or register page is sent to the
//     dashboard;
//   - an admin-only route is closed to non-admins: anonymous visitors go to
//     login, signed-in users to the dashboard;
//   - a protected route sends anonymous visitors to login;
//   - everything else is allowed.
package route
