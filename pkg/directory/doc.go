// Package directory lists the active users who can be notified, each with
// the permission set of their role.
//
// The listing is built from every active role assignment. Permission rows
// are fetched once per distinct role title and normalized by the rbac
// store, so entries always carry every known flag. Entries are sorted by
// display name using a locale-aware collator.
//
// Results are cached under a single key for a short time. Two caches are
// provided: MemoryCache for a single process and RedisCache for replicas
// that share invalidation. Invalidate drops the cached listing.
//
// Views narrow the listing:
//
//	dir.ByRole(ctx, "plant manager")       // case-insensitive title match
//	dir.ByPlant(ctx, "PlantX")             // exact plant match
//	dir.ByHierarchyPrefix(ctx, "ITW>Automotive OEM>")
//	dir.ByPermission(ctx, rbac.PermApproveLessonsLearned)
package directory
