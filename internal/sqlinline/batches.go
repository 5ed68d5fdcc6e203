package sqlinline

const QInsertBatch = `--sql 4aeebb61-655c-4e7e-9d12-32f72d1ebd15
insert into batches (id, user_name, source, private, model, job, image_urls, created_at)
values ($1::uuid, $2::text, $3::text, $4::boolean, $5::text, $6::jsonb, $7::jsonb, now())
on conflict (id) do nothing;
`

const QSelectBatchJob = `--sql 44b59773-b6b8-4451-a06f-47619ae9b0eb
select job
from batches
where id = $1::uuid;
`
