// Package postgres implements the relational writer (C11) and the rest of
// [github.com/symboldb/symboldb/store]'s contract against PostgreSQL, using
// github.com/jackc/pgx/v5 directly rather than an ORM or query builder, the
// way datastore/postgres does in the teacher repo.
//
// The schema itself is an external collaborator — assumed fixed and
// externally supplied; this package does not ship migrations. The
// column/table
// names below are the shape each query assumes, documented for readers, not
// authoritative DDL:
//
//	package(id, name, epoch, version, release, arch, source_rpm, build_time,
//	        build_host, summary, description, license, group_name, vendor,
//	        packager, hash, kind, module, module_stream, no_source, no_patch)
//	package_digest(package_id, algo, digest, length)
//	package_dependency(package_id, kind, capability, op, version, pre_req)
//	package_trigger(id, package_id, script, interp)
//	package_trigger_condition(trigger_id, name, op, version, flags)
//	contents(id, algo, digest, length, preview)
//	file(id, package_id, path, kind, mode, user_name, group_name, mtime,
//	     flags, ino, nlinks, contents_id, symlink_target)
//	elf_image(contents_id, ei_class, ei_data, e_type, e_machine,
//	          architecture, build_id, soname)
//	elf_symbol_definition(contents_id, name, version, is_default, value,
//	                       section, binding, type, visibility)
//	elf_symbol_reference(contents_id, name, version, weak)
//	elf_needed(contents_id, soname)
//	elf_rpath(contents_id, path)
//	elf_runpath(contents_id, path)
//	elf_error(contents_id, message)
//	java_class(contents_id, member, access_flags, this_class, super_class,
//	           interfaces, class_references)
//	java_error(contents_id, member, message)
//	python_import(contents_id, module, attributes)
//	python_error(contents_id, line, message)
//	package_set(id, name)
//	package_set_member(set_id, package_id)
//	closure_edge(set_id, needing_file, soname, chosen_file, conflicts, missing)
//	url_cache(url, bytes, fetch_time, last_modified)
package postgres
