// Package admin provides the administrative JSON API.
//
// # Overview
//
// The admin API manages who may call which tools. It is mounted under
// /api/admin and every route requires an authenticated caller holding the
// System Manager role.
//
// # Endpoints
//
// Tool policy:
//
//   - GET /api/admin/tools - List tools grouped by plugin with their config
//   - PUT /api/admin/tools/{name} - Update enabled, tool_category, role_access_mode, roles
//   - GET /api/admin/tools/{name}/access?user_id= - Explain a user's access to a tool
//   - PUT /api/admin/plugins/{name} - Enable or disable a plugin
//   - GET /api/admin/stats - Tool counts, categories and call volume
//
// Users:
//
//   - GET /api/admin/users - List users with roles
//   - POST /api/admin/users - Create a user
//   - PUT /api/admin/users/{id} - Enable or disable assistant access
//   - POST /api/admin/users/{id}/roles - Grant a role
//   - DELETE /api/admin/users/{id}/roles/{role} - Revoke a role
//
// Credentials:
//
//   - GET /api/admin/apikeys?user_id= - List a user's API keys
//   - POST /api/admin/apikeys - Create an API key (secret returned once)
//   - DELETE /api/admin/apikeys/{key} - Revoke an API key
//   - POST /api/admin/tokens - Issue a JWT
//
// # Tool Configuration
//
// Tools without a stored configuration are enabled with role access mode
// "Allow All" and category read_only. Updating a tool writes a full row, so
// the listing reports it as configured from then on.
//
// # Audit
//
// Every mutation is logged at info level with the acting admin's user id.
package admin
