/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package storage implements script persistence.
// Store is a database/sql repository for scripts, characters, blog posts and script revisions, backed by
// embedded SQLite (WAL, meta/version tables, step migrations) or PostgreSQL (embedded SQL migrations).
// FileStore keeps one JSON document per script with transactional writes and timestamped backups.
// Both satisfy the element load/save contract used by the editor and the autosave coordinator.
package storage
