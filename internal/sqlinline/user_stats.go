package sqlinline

const QCountPrivateImagesSince = `--sql 58931973-61c7-4462-986d-1eba187a2246
select coalesce(sum(images), 0)::bigint
from usage_events
where user_name = $1::text
  and private
  and created_at > now() - make_interval(hours => $2::int);
`

const QRecordUsage = `--sql 88b54ddd-c205-4b18-b2b9-54f8ad27d9d5
with event as (
    insert into usage_events (user_name, images, private, created_at)
    values ($1::text, $2::int, $3::boolean, now())
    returning user_name, images, private
)
insert into user_stats (user_name, batches, images, private_batches, last_request_at)
select user_name, 1, images, case when private then 1 else 0 end, now()
from event
on conflict (user_name) do update set
    batches = user_stats.batches + 1,
    images = user_stats.images + excluded.images,
    private_batches = user_stats.private_batches + excluded.private_batches,
    last_request_at = excluded.last_request_at;
`

const QSelectUserStats = `--sql aab3f03d-787f-425c-bd0c-8168b291e7d3
select batches, images, private_batches, last_request_at
from user_stats
where user_name = $1::text;
`

const QDeletePrivateUsageSince = `--sql e9464a1c-cf28-4c82-9a4d-2912d78e7eac
delete from usage_events
where user_name = $1::text
  and private
  and created_at > now() - make_interval(hours => $2::int);
`
